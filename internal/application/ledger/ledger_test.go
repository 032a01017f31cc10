package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alejandrodnm/wagerbot/internal/adapters/storage"
	"github.com/alejandrodnm/wagerbot/internal/application/ledger"
	"github.com/alejandrodnm/wagerbot/internal/domain"
	"github.com/alejandrodnm/wagerbot/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// recorder guarda los batches encolados.
type recorder struct {
	mu      sync.Mutex
	batches [][]ports.Entry
}

func (r *recorder) Enqueue(entries ...ports.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, entries)
}

func (r *recorder) last() []ports.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batches) == 0 {
		return nil
	}
	return r.batches[len(r.batches)-1]
}

func TestDebit_SubtractsExactStake(t *testing.T) {
	rec := &recorder{}
	l := ledger.New(dec("1000"), "", rec)

	res, err := l.Debit(dec("100"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.True(t, res.Amount.Equal(dec("100")))
	assert.Equal(t, "900", l.Balance().String())

	require.Len(t, rec.batches, 1)
	assert.Equal(t, ports.Entry{Key: "balance", Value: "900"}, rec.last()[0])
}

func TestDebit_WritesExtrasInSameBatch(t *testing.T) {
	rec := &recorder{}
	l := ledger.New(dec("1000"), "", rec)

	_, err := l.Debit(dec("100"), ports.Entry{Key: "active", Value: `{"id":"w1"}`})
	require.NoError(t, err)

	require.Len(t, rec.batches, 1)
	batch := rec.last()
	require.Len(t, batch, 2)
	assert.Equal(t, ports.Entry{Key: "balance", Value: "900"}, batch[0])
	assert.Equal(t, "active", batch[1].Key)

	// Un débito rechazado no persiste el extra
	_, err = l.Debit(dec("5000"), ports.Entry{Key: "active", Value: `{"id":"w2"}`})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Len(t, rec.batches, 1)
}

func TestDebit_InsufficientFunds(t *testing.T) {
	// Scenario 3: balance=500, stake=600
	rec := &recorder{}
	l := ledger.New(dec("500"), "", rec)

	_, err := l.Debit(dec("600"))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, "500", l.Balance().String())
	assert.Empty(t, rec.batches, "a rejected debit must not persist anything")
}

func TestDebit_InvalidStake(t *testing.T) {
	l := ledger.New(dec("500"), "", nil)
	for _, s := range []string{"0", "-1"} {
		_, err := l.Debit(dec(s))
		assert.ErrorIs(t, err, domain.ErrInvalidStake)
	}
	assert.Equal(t, "500", l.Balance().String())
}

func TestDebit_WholeBalance(t *testing.T) {
	l := ledger.New(dec("10.5"), "", nil)
	_, err := l.Debit(dec("10.5"))
	require.NoError(t, err)
	assert.True(t, l.Balance().IsZero())
}

func TestCredit_IgnoresNonPositive(t *testing.T) {
	rec := &recorder{}
	l := ledger.New(dec("100"), "", rec)
	l.Credit(decimal.Zero)
	l.Credit(dec("-5"))
	assert.Equal(t, "100", l.Balance().String())
	assert.Empty(t, rec.batches)

	l.Credit(dec("190"))
	assert.Equal(t, "290", l.Balance().String())
}

func TestCommit_WritesBalanceAndExtrasTogether(t *testing.T) {
	rec := &recorder{}
	l := ledger.New(dec("900"), "acct:balance", rec)

	bal := l.Commit(dec("190"), ports.Entry{Key: "history", Value: "[]"})
	assert.Equal(t, "1090", bal.String())

	batch := rec.last()
	require.Len(t, batch, 2)
	assert.Equal(t, ports.Entry{Key: "acct:balance", Value: "1090"}, batch[0])
	assert.Equal(t, "history", batch[1].Key)

	// Commit sin crédito solo persiste
	bal = l.Commit(decimal.Zero)
	assert.Equal(t, "1090", bal.String())
}

func TestConcurrentDebits_NeverNegative(t *testing.T) {
	l := ledger.New(dec("100"), "", nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Debit(dec("7")); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 14, ok)
	assert.Equal(t, "2", l.Balance().String())
	assert.False(t, l.Balance().IsNegative())
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("missing uses initial", func(t *testing.T) {
		l := ledger.Restore(ctx, storage.NewMemory(), "", dec("1000"), nil)
		assert.Equal(t, "1000", l.Balance().String())
	})

	t.Run("persisted value wins", func(t *testing.T) {
		kv := storage.NewMemory()
		require.NoError(t, kv.Set(ctx, "balance", "1090.00"))
		l := ledger.Restore(ctx, kv, "", dec("1000"), nil)
		assert.True(t, l.Balance().Equal(dec("1090")))
	})

	t.Run("corrupt uses initial", func(t *testing.T) {
		kv := storage.NewMemory()
		require.NoError(t, kv.Set(ctx, "balance", "not-a-number"))
		l := ledger.Restore(ctx, kv, "", dec("1000"), nil)
		assert.Equal(t, "1000", l.Balance().String())
	})

	t.Run("negative uses initial", func(t *testing.T) {
		kv := storage.NewMemory()
		require.NoError(t, kv.Set(ctx, "balance", "-3"))
		l := ledger.Restore(ctx, kv, "", dec("1000"), nil)
		assert.Equal(t, "1000", l.Balance().String())
	})
}

func TestCanAfford(t *testing.T) {
	l := ledger.New(dec("500"), "", nil)
	assert.True(t, l.CanAfford(dec("500")))
	assert.False(t, l.CanAfford(dec("500.01")))
}
