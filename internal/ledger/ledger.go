package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"fh-draw-bot/internal/analysis"
	"fh-draw-bot/internal/metrics"
)

// Typed failures surfaced to callers. Provider-side problems never reach
// this package; everything here is a ledger invariant or input problem.
var (
	ErrNoBankroll      = errors.New("bankroll not set")
	ErrDuplicateBet    = errors.New("bet for this match already exists")
	ErrBetNotFound     = errors.New("bet not found")
	ErrAlreadyResolved = errors.New("bet already resolved")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidOutcome  = errors.New("invalid outcome")
)

// Bet outcomes. A bet starts pending and settles to win or lose exactly once.
const (
	OutcomePending = "pending"
	OutcomeWin     = "win"
	OutcomeLose    = "lose"
)

// Bankroll is one snapshot in the append-only bankroll history. The
// current bankroll is the snapshot with the highest id; Initial is fixed
// at first creation and carried forward on every append.
type Bankroll struct {
	ID        int64
	Total     float64
	Initial   float64
	CreatedAt time.Time
}

// Bet is one row in the bet table. BankrollSnapshot records the bankroll
// total at placement time as an audit value.
type Bet struct {
	ID               int64
	MatchID          string
	MatchName        string
	DrawOdds         float64
	ModelProb        float64
	FairProb         float64
	EVPercent        float64
	Stake            float64
	BankrollSnapshot float64
	Outcome          string
	ProfitLoss       sql.NullFloat64
	BetTime          time.Time
}

// PlaceBetRequest carries the fields a caller supplies at placement.
// The stake is not among them; it is sized here from the current bankroll.
type PlaceBetRequest struct {
	MatchID   string
	MatchName string
	DrawOdds  float64
	ModelProb float64
	FairProb  float64
	EVPercent float64
}

// Settlement is the result of resolving or adjusting a bet.
type Settlement struct {
	BetID       int64
	Outcome     string
	ProfitLoss  float64
	NewBankroll float64
}

// Store owns the bankroll and bet tables. All mutations run inside a
// single transaction over a single connection, so a racing placement and
// resolution cannot both read the same snapshot and lose an update.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS bankroll (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		total REAL NOT NULL,
		initial REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS fh_bets (
		bet_id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL UNIQUE,
		match_name TEXT NOT NULL,
		draw_odds REAL NOT NULL,
		model_prob REAL NOT NULL,
		fair_prob REAL NOT NULL,
		ev_percent REAL NOT NULL,
		stake REAL NOT NULL,
		bankroll_snapshot REAL NOT NULL,
		outcome TEXT NOT NULL DEFAULT 'pending',
		profit_loss REAL,
		bet_time DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_fh_bets_outcome ON fh_bets(outcome);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// queryRower is satisfied by both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CurrentBankroll returns the most recent bankroll snapshot, or nil when
// no bankroll has been set.
func (s *Store) CurrentBankroll(ctx context.Context) (*Bankroll, error) {
	return currentBankroll(ctx, s.db)
}

func currentBankroll(ctx context.Context, q queryRower) (*Bankroll, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, total, initial, created_at
		FROM bankroll ORDER BY id DESC LIMIT 1
	`)

	var b Bankroll
	err := row.Scan(&b.ID, &b.Total, &b.Initial, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning bankroll: %w", err)
	}
	return &b, nil
}

// appendBankroll inserts a new snapshot carrying forward the prior
// initial, or seeding it with newTotal when the table is empty. The only
// mutation path for bankroll; always a new row, never an update.
func appendBankroll(ctx context.Context, tx *sql.Tx, newTotal float64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO bankroll (total, initial)
		VALUES (?, COALESCE((SELECT initial FROM bankroll ORDER BY id DESC LIMIT 1), ?))
	`, newTotal, newTotal)
	if err != nil {
		return fmt.Errorf("appending bankroll snapshot: %w", err)
	}
	return nil
}

// SetBankroll appends a snapshot with the given total and returns the new
// current snapshot. Totals must be positive finite numbers.
func (s *Store) SetBankroll(ctx context.Context, total float64) (*Bankroll, error) {
	if math.IsNaN(total) || math.IsInf(total, 0) || total <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := appendBankroll(ctx, tx, round2(total)); err != nil {
		return nil, err
	}

	b, err := currentBankroll(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing bankroll: %w", err)
	}
	return b, nil
}

// PlaceBet records a new pending bet and deducts its stake from the
// bankroll in one transaction. Fails with ErrNoBankroll when no bankroll
// exists and ErrDuplicateBet when the match already has a bet, regardless
// of that bet's outcome. Returns the inserted bet and the new bankroll
// total.
func (s *Store) PlaceBet(ctx context.Context, req PlaceBetRequest) (*Bet, float64, error) {
	if req.MatchID == "" {
		return nil, 0, fmt.Errorf("place bet: match id required")
	}
	if req.DrawOdds <= 1 || math.IsNaN(req.EVPercent) {
		return nil, 0, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	bankroll, err := currentBankroll(ctx, tx)
	if err != nil {
		return nil, 0, err
	}
	if bankroll == nil {
		return nil, 0, ErrNoBankroll
	}

	var existing int64
	err = tx.QueryRowContext(ctx,
		`SELECT bet_id FROM fh_bets WHERE match_id = ?`, req.MatchID).Scan(&existing)
	if err == nil {
		return nil, 0, ErrDuplicateBet
	}
	if err != sql.ErrNoRows {
		return nil, 0, fmt.Errorf("checking for existing bet: %w", err)
	}

	stake := analysis.SizeStake(bankroll.Total, req.EVPercent)

	res, err := tx.ExecContext(ctx, `
		INSERT INTO fh_bets (
			match_id, match_name, draw_odds, model_prob, fair_prob,
			ev_percent, stake, bankroll_snapshot
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, req.MatchID, req.MatchName, req.DrawOdds, req.ModelProb, req.FairProb,
		req.EVPercent, stake, bankroll.Total)
	if err != nil {
		return nil, 0, fmt.Errorf("inserting bet: %w", err)
	}

	betID, err := res.LastInsertId()
	if err != nil {
		return nil, 0, fmt.Errorf("reading bet id: %w", err)
	}

	newTotal := round2(bankroll.Total - stake)
	if err := appendBankroll(ctx, tx, newTotal); err != nil {
		return nil, 0, err
	}

	bet, err := getBet(ctx, tx, betID)
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("committing bet: %w", err)
	}

	metrics.BetsPlaced.Inc()
	return bet, newTotal, nil
}

// ResolveBet settles a pending bet as win or lose, computing profit/loss
// from the recorded stake and draw odds, and credits the bankroll in the
// same transaction. A bet settles exactly once; settling again fails with
// ErrAlreadyResolved.
func (s *Store) ResolveBet(ctx context.Context, betID int64, outcome string) (*Settlement, error) {
	if outcome != OutcomeWin && outcome != OutcomeLose {
		return nil, ErrInvalidOutcome
	}

	return s.settle(ctx, betID, func(bet *Bet) (string, float64) {
		if outcome == OutcomeWin {
			return outcome, round2(bet.Stake * (bet.DrawOdds - 1))
		}
		return outcome, round2(-bet.Stake)
	})
}

// AdjustBet settles a pending bet with a caller-supplied profit/loss,
// deriving the outcome from its sign. The manual override path for
// markets settled outside the model, such as voids and pushes.
func (s *Store) AdjustBet(ctx context.Context, betID int64, profitLoss float64) (*Settlement, error) {
	if math.IsNaN(profitLoss) || math.IsInf(profitLoss, 0) {
		return nil, ErrInvalidAmount
	}

	return s.settle(ctx, betID, func(*Bet) (string, float64) {
		if profitLoss > 0 {
			return OutcomeWin, round2(profitLoss)
		}
		return OutcomeLose, round2(profitLoss)
	})
}

func (s *Store) settle(ctx context.Context, betID int64, decide func(*Bet) (string, float64)) (*Settlement, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	bet, err := getBet(ctx, tx, betID)
	if err != nil {
		return nil, err
	}
	if bet == nil {
		return nil, ErrBetNotFound
	}
	if bet.Outcome != OutcomePending {
		return nil, ErrAlreadyResolved
	}

	outcome, profitLoss := decide(bet)

	if _, err := tx.ExecContext(ctx, `
		UPDATE fh_bets SET outcome = ?, profit_loss = ? WHERE bet_id = ?
	`, outcome, profitLoss, betID); err != nil {
		return nil, fmt.Errorf("updating bet outcome: %w", err)
	}

	bankroll, err := currentBankroll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if bankroll == nil {
		return nil, ErrNoBankroll
	}

	newTotal := round2(bankroll.Total + profitLoss)
	if err := appendBankroll(ctx, tx, newTotal); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing settlement: %w", err)
	}

	metrics.BetsSettled.Inc()
	return &Settlement{
		BetID:       betID,
		Outcome:     outcome,
		ProfitLoss:  profitLoss,
		NewBankroll: newTotal,
	}, nil
}

const betCols = `bet_id, match_id, match_name, draw_odds, model_prob, fair_prob,
	ev_percent, stake, bankroll_snapshot, outcome, profit_loss, bet_time`

func getBet(ctx context.Context, q queryRower, betID int64) (*Bet, error) {
	row := q.QueryRowContext(ctx, `SELECT `+betCols+` FROM fh_bets WHERE bet_id = ?`, betID)

	var b Bet
	err := row.Scan(&b.ID, &b.MatchID, &b.MatchName, &b.DrawOdds, &b.ModelProb,
		&b.FairProb, &b.EVPercent, &b.Stake, &b.BankrollSnapshot,
		&b.Outcome, &b.ProfitLoss, &b.BetTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning bet: %w", err)
	}
	return &b, nil
}

// GetBet retrieves a bet by id, or nil when absent.
func (s *Store) GetBet(ctx context.Context, betID int64) (*Bet, error) {
	return getBet(ctx, s.db, betID)
}

// ListBets returns bets newest first by bet time. An empty outcome
// returns everything; otherwise the filter must be a known outcome.
func (s *Store) ListBets(ctx context.Context, outcome string) ([]Bet, error) {
	query := `SELECT ` + betCols + ` FROM fh_bets ORDER BY bet_time DESC, bet_id DESC`
	var args []any
	if outcome != "" {
		if outcome != OutcomePending && outcome != OutcomeWin && outcome != OutcomeLose {
			return nil, ErrInvalidOutcome
		}
		query = `SELECT ` + betCols + ` FROM fh_bets WHERE outcome = ? ORDER BY bet_time DESC, bet_id DESC`
		args = append(args, outcome)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bets: %w", err)
	}
	defer rows.Close()

	var bets []Bet
	for rows.Next() {
		var b Bet
		if err := rows.Scan(&b.ID, &b.MatchID, &b.MatchName, &b.DrawOdds, &b.ModelProb,
			&b.FairProb, &b.EVPercent, &b.Stake, &b.BankrollSnapshot,
			&b.Outcome, &b.ProfitLoss, &b.BetTime); err != nil {
			return nil, fmt.Errorf("scanning bet row: %w", err)
		}
		bets = append(bets, b)
	}

	return bets, rows.Err()
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
