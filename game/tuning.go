package game

import "math"

// Playfield and physics constants in canonical units.
const (
	CanvasWidth  = 1000.0
	CanvasHeight = 500.0

	PaddleWidth  = 10.0
	PaddleHeight = 100.0
	PaddleOffset = 20.0
	PaddleSpeed  = 8.0

	BallRadius     = 10.0
	BallServeSpeed = 5.0
	BallBaseSpeed  = 7.0
	BallMaxSpeed   = 16.0
	BallHitBoost   = 0.5

	// Пока мяч в игре, каждые AccelerationTicks тиков скорость растёт на AccelerationStep.
	AccelerationTicks = 300
	AccelerationStep  = 0.25

	ServeDelayTicks = 60

	MaxBounceAngle = math.Pi / 3
	WinningScore   = 3
)
