package game

import "math"

type Paddle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Speed  float64 `json:"speed"`
	Up     bool    `json:"-"`
	Down   bool    `json:"-"`
}

// CenterY returns the vertical centre of the paddle.
func (p *Paddle) CenterY() float64 {
	return p.Y + p.Height/2
}

type Ball struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Angle  float64 `json:"angle"`
	Speed  float64 `json:"speed"`
	Moving bool    `json:"moving"`
}

// Score.Winner is 0 while the match is undecided, otherwise 1 or 2.
type Score struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
	Winner  int `json:"winner"`
}

type State struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Paddle1  Paddle  `json:"paddle1"`
	Paddle2  Paddle  `json:"paddle2"`
	Ball     Ball    `json:"ball"`
	Score    Score   `json:"score"`
	Paused   bool    `json:"paused"`
	Running  bool    `json:"running"`
	FirstHit bool    `json:"first_hit"`
	Tick     uint64  `json:"tick"`

	serveIn     int
	serveDir    int
	ticksInPlay int
}

// NewState returns a fresh match with paddles centred and the ball at rest.
func NewState() *State {
	s := &State{
		Width:  CanvasWidth,
		Height: CanvasHeight,
		Paddle1: Paddle{
			X:      PaddleOffset,
			Y:      (CanvasHeight - PaddleHeight) / 2,
			Width:  PaddleWidth,
			Height: PaddleHeight,
			Speed:  PaddleSpeed,
		},
		Paddle2: Paddle{
			X:      CanvasWidth - PaddleOffset - PaddleWidth,
			Y:      (CanvasHeight - PaddleHeight) / 2,
			Width:  PaddleWidth,
			Height: PaddleHeight,
			Speed:  PaddleSpeed,
		},
		serveDir: -1,
	}
	s.resetBall()
	return s
}

// Start puts the match in play; the first serve follows after the serve delay.
func (s *State) Start() {
	if s.Running || s.Score.Winner != 0 {
		return
	}
	s.Running = true
	s.serveIn = ServeDelayTicks
}

// Stop freezes the simulation without touching the score.
func (s *State) Stop() {
	s.Running = false
	s.Ball.Moving = false
}

func (s *State) TogglePause() {
	s.Paused = !s.Paused
}

// Reset clears the score and re-centres everything.
func (s *State) Reset() {
	running := s.Running
	*s = *NewState()
	if running {
		s.Start()
	}
}

// SetIntent records paddle movement flags for side 1 or 2.
func (s *State) SetIntent(side int, up, down bool) {
	p := s.paddle(side)
	if p == nil {
		return
	}
	p.Up, p.Down = up, down
}

func (s *State) paddle(side int) *Paddle {
	switch side {
	case 1:
		return &s.Paddle1
	case 2:
		return &s.Paddle2
	}
	return nil
}

func (s *State) resetBall() {
	s.Ball = Ball{
		X:      s.Width / 2,
		Y:      s.Height / 2,
		Radius: BallRadius,
		Speed:  BallServeSpeed,
	}
	s.FirstHit = false
	s.ticksInPlay = 0
}

// serve launches the ball toward the side that conceded last. The slant alternates with
// the number of points played so replays stay deterministic.
func (s *State) serve() {
	slant := math.Pi / 8
	if (s.Score.Player1+s.Score.Player2)%2 == 1 {
		slant = -slant
	}
	if s.serveDir < 0 {
		s.Ball.Angle = math.Pi - slant
	} else {
		s.Ball.Angle = slant
	}
	s.Ball.Moving = true
}

// Intent returns the movement flags of side 1 or 2.
func (s *State) Intent(side int) (up, down bool) {
	p := s.paddle(side)
	if p == nil {
		return false, false
	}
	return p.Up, p.Down
}
