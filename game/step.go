package game

import "math"

// Event reports what a single Step produced.
type Event int

const (
	EventNone Event = iota
	EventScored
	EventWon
)

// Step advances the simulation by exactly one tick. It has no hidden inputs: the same
// state and the same sequence of intents always yield the same result.
func Step(s *State) Event {
	if s.Paused {
		return EventNone
	}
	s.Tick++
	movePaddle(&s.Paddle1, s.Height)
	movePaddle(&s.Paddle2, s.Height)

	if !s.Running {
		return EventNone
	}
	if !s.Ball.Moving {
		if s.serveIn > 0 {
			s.serveIn--
		}
		if s.serveIn == 0 {
			s.serve()
		}
		return EventNone
	}

	if s.FirstHit {
		s.ticksInPlay++
		if s.ticksInPlay%AccelerationTicks == 0 {
			s.Ball.Speed = math.Min(s.Ball.Speed+AccelerationStep, BallMaxSpeed)
		}
	}

	b := &s.Ball
	b.X += math.Cos(b.Angle) * b.Speed
	b.Y += math.Sin(b.Angle) * b.Speed

	reflectWalls(b, s.Height)
	s.collide(&s.Paddle1, true)
	s.collide(&s.Paddle2, false)

	return s.checkScore()
}

func movePaddle(p *Paddle, height float64) {
	switch {
	case p.Up && !p.Down:
		p.Y -= p.Speed
	case p.Down && !p.Up:
		p.Y += p.Speed
	}
	p.Y = clamp(p.Y, 0, height-p.Height)
}

// reflectWalls keeps the ball inside [radius, height-radius].
func reflectWalls(b *Ball, height float64) {
	if b.Y-b.Radius <= 0 && math.Sin(b.Angle) < 0 {
		b.Y = b.Radius
		b.Angle = -b.Angle
	} else if b.Y+b.Radius >= height && math.Sin(b.Angle) > 0 {
		b.Y = height - b.Radius
		b.Angle = -b.Angle
	}
	b.Y = clamp(b.Y, b.Radius, height-b.Radius)
}

func (s *State) collide(p *Paddle, left bool) {
	b := &s.Ball
	dirX := math.Cos(b.Angle)
	if left && dirX >= 0 || !left && dirX <= 0 {
		return
	}
	if b.X-b.Radius > p.X+p.Width || b.X+b.Radius < p.X {
		return
	}
	if b.Y+b.Radius < p.Y || b.Y-b.Radius > p.Y+p.Height {
		return
	}

	offset := clamp((b.Y-p.CenterY())/(p.Height/2), -1, 1)
	bounce := offset * MaxBounceAngle
	if left {
		b.Angle = bounce
		b.X = p.X + p.Width + b.Radius
	} else {
		b.Angle = math.Pi - bounce
		b.X = p.X - b.Radius
	}

	if !s.FirstHit {
		s.FirstHit = true
		b.Speed = math.Max(b.Speed, BallBaseSpeed)
		return
	}
	b.Speed = math.Min(b.Speed+BallHitBoost, BallMaxSpeed)
}

func (s *State) checkScore() Event {
	b := &s.Ball
	switch {
	case b.X+b.Radius < 0:
		s.Score.Player2++
		s.serveDir = -1
	case b.X-b.Radius > s.Width:
		s.Score.Player1++
		s.serveDir = 1
	default:
		return EventNone
	}

	s.resetBall()
	s.serveIn = ServeDelayTicks

	switch {
	case s.Score.Player1 >= WinningScore:
		s.Score.Winner = 1
	case s.Score.Player2 >= WinningScore:
		s.Score.Winner = 2
	default:
		return EventScored
	}
	s.Running = false
	return EventWon
}

// Forfeit ends the match in favour of side without touching the points.
func (s *State) Forfeit(winner int) {
	if s.Score.Winner != 0 || (winner != 1 && winner != 2) {
		return
	}
	s.Score.Winner = winner
	s.Stop()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
