package rooms

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/pong-tournaments/game"
	"github.com/Dosada05/pong-tournaments/models"
)

// Reporter is the external result ledger. Failures are logged and never retried.
type Reporter interface {
	ReportMatch(ctx context.Context, result models.MatchResult) error
}

type ReporterFunc func(ctx context.Context, result models.MatchResult) error

func (f ReporterFunc) ReportMatch(ctx context.Context, result models.MatchResult) error {
	return f(ctx, result)
}

type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Options describe one hosted match.
type Options struct {
	ID           int
	Kind         Kind
	Player1      Participant
	Player2      Participant
	TournamentID string
	MatchID      string
	FinalMatch   bool

	// OnComplete runs once, in-process, after a winner is decided.
	OnComplete func(result models.MatchResult)
	// OnClosed runs once the room has released its connections.
	OnClosed func(id int)
}

func (o Options) validate() error {
	if o.Player1.ID == "" || o.Player2.ID == "" || o.Player1.ID == o.Player2.ID {
		return ErrInvalidOptions
	}
	if !o.Kind.Valid() {
		return ErrInvalidOptions
	}
	return nil
}

type seat struct {
	participant   Participant
	conn          models.Connection
	everConnected bool
}

// Room hosts one match: the simulation, two named seats and the tick loop.
type Room struct {
	mu sync.Mutex

	opts     Options
	cfg      Config
	reporter Reporter
	logger   *slog.Logger

	seats  [2]seat
	state  *game.State
	status Status
	reason string

	waitRemaining int
	lastCountdown time.Time
	startedAt     time.Time
	endedAt       time.Time
	forfeit       bool
	leaver        string

	quit       chan struct{}
	loopOn     bool
	finished   bool
	closed     bool
	closeTimer *time.Timer
	closedOnce sync.Once
}

func newRoom(opts Options, cfg Config, reporter Reporter, logger *slog.Logger) *Room {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Room{
		opts:     opts,
		cfg:      cfg,
		reporter: reporter,
		logger: logger.With(
			slog.Int("game_id", opts.ID),
			slog.String("kind", string(opts.Kind)),
		),
		seats: [2]seat{
			{participant: opts.Player1},
			{participant: opts.Player2},
		},
		state:         game.NewState(),
		status:        StatusWaiting,
		waitRemaining: cfg.WaitSeconds,
		quit:          make(chan struct{}),
	}
}

func (r *Room) ID() int {
	return r.opts.ID
}

func (r *Room) Kind() Kind {
	return r.opts.Kind
}

// Start launches the tick loop. Calling it again is a no-op.
func (r *Room) Start() {
	r.mu.Lock()
	if r.loopOn || r.finished || r.closed {
		r.mu.Unlock()
		return
	}
	r.loopOn = true
	quit := r.quit
	r.mu.Unlock()

	go r.run(quit)
}

func (r *Room) run(quit <-chan struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(r.cfg.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case now := <-ticker.C:
			r.tick(now)
		}
	}
}

func (r *Room) stopLoopLocked() {
	if r.loopOn {
		close(r.quit)
		r.loopOn = false
	}
}

// tick runs one simulation step and broadcasts the resulting frame.
func (r *Room) tick(now time.Time) {
	r.mu.Lock()
	if r.finished || r.closed {
		r.mu.Unlock()
		return
	}
	if r.lastCountdown.IsZero() {
		r.lastCountdown = now
	}

	var after func()
	if r.bothPresentLocked() {
		if r.status != StatusPlaying {
			r.status = StatusPlaying
			if r.startedAt.IsZero() {
				r.startedAt = now
			}
			r.state.Start()
		}
		r.waitRemaining = r.cfg.WaitSeconds
		r.lastCountdown = now
		if game.Step(r.state) == game.EventWon {
			after = r.completeLocked(now, false)
		}
	} else {
		r.status = StatusWaiting
		for now.Sub(r.lastCountdown) >= time.Second && r.waitRemaining > 0 {
			r.waitRemaining--
			r.lastCountdown = r.lastCountdown.Add(time.Second)
		}
		if r.waitRemaining <= 0 {
			after = r.expireLocked(now)
		}
	}

	r.broadcastLocked(r.frameLocked())
	r.mu.Unlock()

	if after != nil {
		after()
	}
}

func (r *Room) bothPresentLocked() bool {
	return r.seats[0].conn != nil && r.seats[1].conn != nil
}

// expireLocked applies the absence policy once the wait counter hits zero.
func (r *Room) expireLocked(now time.Time) func() {
	present1 := r.seats[0].conn != nil
	present2 := r.seats[1].conn != nil

	if r.opts.Kind.Policy() == PolicyCancel {
		reason := ReasonInviteExpired
		if r.seats[0].everConnected || r.seats[1].everConnected {
			reason = ReasonPlayerLeft
		}
		return r.cancelLocked(reason)
	}

	// The seat that waited out the whole window forfeits to the other one.
	// With both seats empty the first seat (higher seed) is awarded the match.
	winner := 1
	if present1 && !present2 {
		winner = 2
	}
	r.logger.Info("wait window expired, awarding forfeit",
		slog.Int("winner_side", winner),
		slog.Bool("player1_present", present1),
		slog.Bool("player2_present", present2))
	r.state.Forfeit(winner)
	return r.completeLocked(now, true)
}

func (r *Room) completeLocked(now time.Time, forfeit bool) func() {
	r.finished = true
	r.forfeit = forfeit
	r.status = StatusCompleted
	r.endedAt = now
	if r.startedAt.IsZero() {
		r.startedAt = now
	}
	r.state.Stop()
	r.stopLoopLocked()

	result := r.resultLocked()
	r.logger.Info("match completed",
		slog.String("winner", result.WinnerID),
		slog.Int("score1", result.Score1),
		slog.Int("score2", result.Score2),
		slog.Bool("forfeit", forfeit))

	onComplete := r.opts.OnComplete
	return func() {
		go r.report(result)
		if onComplete != nil {
			onComplete(result)
		}
		r.scheduleClose(r.cfg.GraceDelay)
	}
}

func (r *Room) cancelLocked(reason string) func() {
	r.finished = true
	r.status = StatusCancelled
	r.reason = reason
	r.state.Stop()
	r.stopLoopLocked()
	r.logger.Info("game room cancelled", slog.String("reason", reason))
	return func() {
		r.scheduleClose(r.cfg.CancelDelay)
	}
}

func (r *Room) resultLocked() models.MatchResult {
	score := r.state.Score
	result := models.MatchResult{
		GameID:       r.opts.ID,
		TournamentID: r.opts.TournamentID,
		MatchID:      r.opts.MatchID,
		Player1ID:    r.seats[0].participant.ID,
		Player2ID:    r.seats[1].participant.ID,
		Score1:       score.Player1,
		Score2:       score.Player2,
		StartTime:    r.startedAt,
		EndTime:      r.endedAt,
		FinalMatch:   r.opts.FinalMatch,
		Forfeit:      r.forfeit,
		LeaverID:     r.leaver,
	}
	switch score.Winner {
	case 1:
		result.WinnerID = result.Player1ID
	case 2:
		result.WinnerID = result.Player2ID
	}
	return result
}

func (r *Room) report(result models.MatchResult) {
	if r.reporter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ReportTimeout)
	defer cancel()
	if err := r.reporter.ReportMatch(ctx, result); err != nil {
		r.logger.Error("failed to report match result", slog.Any("error", err))
	}
}

func (r *Room) scheduleClose(delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeTimer != nil || r.closed {
		return
	}
	r.closeTimer = time.AfterFunc(delay, r.close)
}

func (r *Room) close() {
	r.Cleanup()
	r.closedOnce.Do(func() {
		if r.opts.OnClosed != nil {
			r.opts.OnClosed(r.opts.ID)
		}
	})
}

// Cleanup stops the loop and closes every bound connection. Safe to call repeatedly.
func (r *Room) Cleanup() {
	r.mu.Lock()
	r.stopLoopLocked()
	r.closed = true
	conns := make([]models.Connection, 0, 2)
	for i := range r.seats {
		if r.seats[i].conn != nil {
			conns = append(conns, r.seats[i].conn)
			r.seats[i].conn = nil
		}
	}
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

// Attach binds a live connection to the seat owned by identity and sends it the current frame.
// A previous connection on the same seat is closed.
func (r *Room) Attach(identity string, conn models.Connection) (int, error) {
	r.mu.Lock()
	if r.closed || r.finished {
		r.mu.Unlock()
		return 0, ErrRoomClosed
	}
	side := r.sideLocked(identity)
	if side == 0 {
		r.mu.Unlock()
		return 0, ErrUnknownIdentity
	}
	s := &r.seats[side-1]
	old := s.conn
	s.conn = conn
	s.everConnected = true
	_ = conn.Send(models.Encode(r.frameLocked()))
	r.mu.Unlock()

	if old != nil && old != conn {
		_ = old.Close()
	}
	r.logger.Info("player attached", slog.String("player_id", identity), slog.Int("side", side))
	return side, nil
}

// Detach frees the seat if conn is still the one bound to it. The match keeps running
// and the seat can be reclaimed until the wait counter expires.
func (r *Room) Detach(identity string, conn models.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	side := r.sideLocked(identity)
	if side == 0 {
		return
	}
	if r.seats[side-1].conn == conn {
		r.seats[side-1].conn = nil
		r.logger.Info("player detached", slog.String("player_id", identity))
	}
}

func (r *Room) sideLocked(identity string) int {
	switch {
	case identity == "":
		return 0
	case r.seats[0].participant.ID == identity:
		return 1
	case r.seats[1].participant.ID == identity:
		return 2
	}
	return 0
}

// HandleMessage applies one inbound room message from identity.
func (r *Room) HandleMessage(identity string, msg models.InboundMessage) error {
	switch msg.Type {
	case models.MsgKeyDown, models.MsgKeyUp:
		r.setKey(identity, msg.Key, msg.Type == models.MsgKeyDown)
		return nil
	case models.MsgCommand:
		return r.command(identity, msg.Key)
	}
	return ErrUnknownMessage
}

func (r *Room) setKey(identity, key string, pressed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	side := r.sideLocked(identity)
	if side == 0 || r.finished {
		return
	}
	up, down := r.state.Intent(side)
	switch key {
	case "ArrowUp", "w", "W":
		up = pressed
	case "ArrowDown", "s", "S":
		down = pressed
	default:
		return
	}
	r.state.SetIntent(side, up, down)
}

func (r *Room) command(identity, key string) error {
	switch key {
	case "leave":
		r.Leave(identity)
		return nil
	case "p":
		r.mu.Lock()
		if !r.finished && r.sideLocked(identity) != 0 {
			r.state.TogglePause()
		}
		r.mu.Unlock()
		return nil
	case "reset":
		if r.opts.Kind != KindCustom {
			return ErrResetNotAllowed
		}
		r.mu.Lock()
		if !r.finished && r.sideLocked(identity) != 0 {
			r.state.Reset()
		}
		r.mu.Unlock()
		return nil
	}
	return ErrUnknownCommand
}

// Leave resolves an explicit departure: the opponent wins, or a custom room is cancelled.
func (r *Room) Leave(identity string) {
	r.mu.Lock()
	side := r.sideLocked(identity)
	if side == 0 || r.finished || r.closed {
		r.mu.Unlock()
		return
	}
	var after func()
	if r.opts.Kind.Policy() == PolicyCancel {
		after = r.cancelLocked(ReasonPlayerLeft)
	} else {
		r.leaver = identity
		r.state.Forfeit(3 - side)
		after = r.completeLocked(time.Now(), true)
	}
	r.broadcastLocked(r.frameLocked())
	r.mu.Unlock()

	after()
}

// Cancel ends the room without a winner and releases it after the cancel delay.
func (r *Room) Cancel(reason string) {
	r.mu.Lock()
	if r.finished || r.closed {
		r.mu.Unlock()
		return
	}
	after := r.cancelLocked(reason)
	r.broadcastLocked(r.frameLocked())
	r.mu.Unlock()

	after()
}

func (r *Room) broadcastLocked(frame Frame) {
	data := models.Encode(frame)
	for i := range r.seats {
		if c := r.seats[i].conn; c != nil {
			if err := c.Send(data); err != nil {
				r.logger.Debug("skipping closed connection", slog.Int("side", i+1), slog.Any("error", err))
			}
		}
	}
}

func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Room) Snapshot() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameLocked()
}
