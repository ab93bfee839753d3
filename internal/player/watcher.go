package player

import "time"

// watch polls the session until it reaches the end, then signals once. It
// exits quietly when the session is stopped or replaced.
func (p *Player) watch(s *session) {
	defer p.watchers.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		if p.current.Load() != s {
			return
		}

		if s.finished() {
			p.markFinished(s.gen)
			return
		}
	}
}
