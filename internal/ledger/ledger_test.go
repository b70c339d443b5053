package ledger

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("opening test ledger: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRequest(matchID string) PlaceBetRequest {
	return PlaceBetRequest{
		MatchID:   matchID,
		MatchName: "Arsenal vs Chelsea",
		DrawOdds:  3.0,
		ModelProb: 0.41,
		FairProb:  0.29,
		EVPercent: 10,
	}
}

func TestCurrentBankrollEmpty(t *testing.T) {
	s := newTestStore(t)

	b, err := s.CurrentBankroll(context.Background())
	if err != nil {
		t.Fatalf("CurrentBankroll: %v", err)
	}
	if b != nil {
		t.Errorf("CurrentBankroll on empty table = %+v, want nil", b)
	}
}

func TestSetBankrollValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, total := range []float64{0, -100, math.NaN(), math.Inf(1)} {
		if _, err := s.SetBankroll(ctx, total); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("SetBankroll(%v) err = %v, want ErrInvalidAmount", total, err)
		}
	}
}

func TestSetBankrollCarriesInitialForward(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.SetBankroll(ctx, 1000)
	if err != nil {
		t.Fatalf("SetBankroll: %v", err)
	}
	if first.Total != 1000 || first.Initial != 1000 {
		t.Errorf("first snapshot = total %v initial %v, want 1000/1000", first.Total, first.Initial)
	}

	second, err := s.SetBankroll(ctx, 1250)
	if err != nil {
		t.Fatalf("SetBankroll: %v", err)
	}
	if second.Total != 1250 {
		t.Errorf("second snapshot total = %v, want 1250", second.Total)
	}
	if second.Initial != 1000 {
		t.Errorf("second snapshot initial = %v, want 1000 carried forward", second.Initial)
	}
	if second.ID <= first.ID {
		t.Errorf("snapshot ids not monotonic: %d then %d", first.ID, second.ID)
	}
}

func TestPlaceBetRequiresBankroll(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.PlaceBet(context.Background(), testRequest("m1"))
	if !errors.Is(err, ErrNoBankroll) {
		t.Errorf("PlaceBet without bankroll err = %v, want ErrNoBankroll", err)
	}
}

func TestPlaceBetDeductsStake(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SetBankroll(ctx, 1000); err != nil {
		t.Fatalf("SetBankroll: %v", err)
	}

	bet, newBankroll, err := s.PlaceBet(ctx, testRequest("m1"))
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	// EV 10 on a 1000 bankroll sizes to the full 2% fraction.
	if bet.Stake != 20 {
		t.Errorf("stake = %v, want 20", bet.Stake)
	}
	if newBankroll != 980 {
		t.Errorf("new bankroll = %v, want 980", newBankroll)
	}
	if bet.Outcome != OutcomePending {
		t.Errorf("outcome = %q, want pending", bet.Outcome)
	}
	if bet.ProfitLoss.Valid {
		t.Errorf("profit/loss = %+v, want null at placement", bet.ProfitLoss)
	}
	if bet.BankrollSnapshot != 1000 {
		t.Errorf("bankroll snapshot = %v, want 1000", bet.BankrollSnapshot)
	}

	current, err := s.CurrentBankroll(ctx)
	if err != nil {
		t.Fatalf("CurrentBankroll: %v", err)
	}
	if current.Total != 980 {
		t.Errorf("current bankroll = %v, want 980", current.Total)
	}
	if current.Initial != 1000 {
		t.Errorf("initial = %v, want 1000", current.Initial)
	}
}

func TestPlaceBetRejectsDuplicateMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SetBankroll(ctx, 1000); err != nil {
		t.Fatalf("SetBankroll: %v", err)
	}
	if _, _, err := s.PlaceBet(ctx, testRequest("m1")); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	if _, _, err := s.PlaceBet(ctx, testRequest("m1")); !errors.Is(err, ErrDuplicateBet) {
		t.Errorf("duplicate PlaceBet err = %v, want ErrDuplicateBet", err)
	}

	bets, err := s.ListBets(ctx, "")
	if err != nil {
		t.Fatalf("ListBets: %v", err)
	}
	if len(bets) != 1 {
		t.Errorf("bet count after duplicate = %d, want 1", len(bets))
	}

	// A failed placement must not have touched the bankroll.
	current, err := s.CurrentBankroll(ctx)
	if err != nil {
		t.Fatalf("CurrentBankroll: %v", err)
	}
	if current.Total != 980 {
		t.Errorf("bankroll after rejected duplicate = %v, want 980", current.Total)
	}
}

func TestResolveBetWinRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SetBankroll(ctx, 1000); err != nil {
		t.Fatalf("SetBankroll: %v", err)
	}
	bet, _, err := s.PlaceBet(ctx, testRequest("m1"))
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	// stake 20 at 3.0: profit = 20 * (3.0 - 1) = 40; 980 + 40 = 1020.
	res, err := s.ResolveBet(ctx, bet.ID, OutcomeWin)
	if err != nil {
		t.Fatalf("ResolveBet: %v", err)
	}
	if res.ProfitLoss != 40 {
		t.Errorf("profit/loss = %v, want 40", res.ProfitLoss)
	}
	if res.NewBankroll != 1020 {
		t.Errorf("new bankroll = %v, want 1020", res.NewBankroll)
	}
	if res.Outcome != OutcomeWin {
		t.Errorf("outcome = %q, want win", res.Outcome)
	}

	got, err := s.GetBet(ctx, bet.ID)
	if err != nil {
		t.Fatalf("GetBet: %v", err)
	}
	if got.Outcome != OutcomeWin {
		t.Errorf("stored outcome = %q, want win", got.Outcome)
	}
	if !got.ProfitLoss.Valid || got.ProfitLoss.Float64 != 40 {
		t.Errorf("stored profit/loss = %+v, want 40", got.ProfitLoss)
	}
}

func TestResolveBetLose(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SetBankroll(ctx, 1000); err != nil {
		t.Fatalf("SetBankroll: %v", err)
	}
	bet, _, err := s.PlaceBet(ctx, testRequest("m1"))
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	res, err := s.ResolveBet(ctx, bet.ID, OutcomeLose)
	if err != nil {
		t.Fatalf("ResolveBet: %v", err)
	}
	if res.ProfitLoss != -20 {
		t.Errorf("profit/loss = %v, want -20", res.ProfitLoss)
	}
	if res.NewBankroll != 960 {
		t.Errorf("new bankroll = %v, want 960", res.NewBankroll)
	}
}

func TestResolveBetLoseFractionalStake(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SetBankroll(ctx, 333.33); err != nil {
		t.Fatalf("SetBankroll: %v", err)
	}

	// EV 7 on 333.33 sizes to 4.67; the loss must debit exactly that.
	req := testRequest("m1")
	req.EVPercent = 7
	bet, newBankroll, err := s.PlaceBet(ctx, req)
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if bet.Stake != 4.67 {
		t.Fatalf("stake = %v, want 4.67", bet.Stake)
	}
	if newBankroll != 328.66 {
		t.Fatalf("new bankroll = %v, want 328.66", newBankroll)
	}

	res, err := s.ResolveBet(ctx, bet.ID, OutcomeLose)
	if err != nil {
		t.Fatalf("ResolveBet: %v", err)
	}
	if res.ProfitLoss != -4.67 {
		t.Errorf("profit/loss = %v, want -4.67", res.ProfitLoss)
	}
	if res.NewBankroll != 323.99 {
		t.Errorf("new bankroll = %v, want 323.99", res.NewBankroll)
	}
}

func TestResolveBetOnlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SetBankroll(ctx, 1000); err != nil {
		t.Fatalf("SetBankroll: %v", err)
	}
	bet, _, err := s.PlaceBet(ctx, testRequest("m1"))
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if _, err := s.ResolveBet(ctx, bet.ID, OutcomeWin); err != nil {
		t.Fatalf("ResolveBet: %v", err)
	}

	if _, err := s.ResolveBet(ctx, bet.ID, OutcomeLose); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second resolve err = %v, want ErrAlreadyResolved", err)
	}
	if _, err := s.AdjustBet(ctx, bet.ID, 5); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("adjust after resolve err = %v, want ErrAlreadyResolved", err)
	}

	// The double-resolution attempt must not have credited the bankroll again.
	current, err := s.CurrentBankroll(ctx)
	if err != nil {
		t.Fatalf("CurrentBankroll: %v", err)
	}
	if current.Total != 1020 {
		t.Errorf("bankroll after rejected re-resolution = %v, want 1020", current.Total)
	}
}

func TestResolveBetErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.ResolveBet(ctx, 99, OutcomeWin); !errors.Is(err, ErrBetNotFound) {
		t.Errorf("resolve missing bet err = %v, want ErrBetNotFound", err)
	}
	if _, err := s.ResolveBet(ctx, 1, "void"); !errors.Is(err, ErrInvalidOutcome) {
		t.Errorf("resolve with bad outcome err = %v, want ErrInvalidOutcome", err)
	}
	if _, err := s.AdjustBet(ctx, 1, math.NaN()); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("adjust with NaN err = %v, want ErrInvalidAmount", err)
	}
}

func TestAdjustBet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SetBankroll(ctx, 1000); err != nil {
		t.Fatalf("SetBankroll: %v", err)
	}
	bet, _, err := s.PlaceBet(ctx, testRequest("m1"))
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	// Manual credit of 15.50: derived outcome is win.
	res, err := s.AdjustBet(ctx, bet.ID, 15.50)
	if err != nil {
		t.Fatalf("AdjustBet: %v", err)
	}
	if res.Outcome != OutcomeWin {
		t.Errorf("outcome = %q, want win", res.Outcome)
	}
	if res.NewBankroll != 995.50 {
		t.Errorf("new bankroll = %v, want 995.50", res.NewBankroll)
	}
}

func TestAdjustBetZeroDerivesLose(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SetBankroll(ctx, 1000); err != nil {
		t.Fatalf("SetBankroll: %v", err)
	}
	bet, _, err := s.PlaceBet(ctx, testRequest("m1"))
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	res, err := s.AdjustBet(ctx, bet.ID, 0)
	if err != nil {
		t.Fatalf("AdjustBet: %v", err)
	}
	if res.Outcome != OutcomeLose {
		t.Errorf("outcome for zero adjustment = %q, want lose", res.Outcome)
	}
	if res.NewBankroll != 980 {
		t.Errorf("new bankroll = %v, want 980 (unchanged)", res.NewBankroll)
	}
}

func TestListBetsFilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SetBankroll(ctx, 1000); err != nil {
		t.Fatalf("SetBankroll: %v", err)
	}

	first, _, err := s.PlaceBet(ctx, testRequest("m1"))
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	req := testRequest("m2")
	req.MatchName = "Liverpool vs Everton"
	second, _, err := s.PlaceBet(ctx, req)
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if _, err := s.ResolveBet(ctx, first.ID, OutcomeWin); err != nil {
		t.Fatalf("ResolveBet: %v", err)
	}

	all, err := s.ListBets(ctx, "")
	if err != nil {
		t.Fatalf("ListBets: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("bet count = %d, want 2", len(all))
	}
	if all[0].ID != second.ID {
		t.Errorf("newest bet first: got id %d, want %d", all[0].ID, second.ID)
	}

	wins, err := s.ListBets(ctx, OutcomeWin)
	if err != nil {
		t.Fatalf("ListBets(win): %v", err)
	}
	if len(wins) != 1 || wins[0].ID != first.ID {
		t.Errorf("win filter = %+v, want only bet %d", wins, first.ID)
	}

	pending, err := s.ListBets(ctx, OutcomePending)
	if err != nil {
		t.Fatalf("ListBets(pending): %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Errorf("pending filter = %+v, want only bet %d", pending, second.ID)
	}

	if _, err := s.ListBets(ctx, "void"); !errors.Is(err, ErrInvalidOutcome) {
		t.Errorf("ListBets with bad filter err = %v, want ErrInvalidOutcome", err)
	}
}

func TestPlaceBetSizesAgainstCurrentSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SetBankroll(ctx, 1000); err != nil {
		t.Fatalf("SetBankroll: %v", err)
	}
	if _, _, err := s.PlaceBet(ctx, testRequest("m1")); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	// Second placement sees the deducted bankroll: 2% of 980 = 19.60.
	bet, newBankroll, err := s.PlaceBet(ctx, testRequest("m2"))
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if bet.Stake != 19.60 {
		t.Errorf("stake = %v, want 19.60", bet.Stake)
	}
	if newBankroll != 960.40 {
		t.Errorf("new bankroll = %v, want 960.40", newBankroll)
	}
	if bet.BankrollSnapshot != 980 {
		t.Errorf("snapshot = %v, want 980", bet.BankrollSnapshot)
	}
}
