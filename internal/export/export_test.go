package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLedger(t *testing.T) *store.MemoryLedger {
	t.Helper()
	ledger := store.NewMemoryLedger()
	ctx := context.Background()

	amount, err := models.NewMoneyFromString("4.50", "USD")
	require.NoError(t, err)
	accepted := models.TransactionRecord{
		ID:            "rec-1",
		User:          "alice",
		SourceEmailID: "m-1",
		Merchant:      "CoffeeCo",
		Amount:        amount,
		Date:          time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
		Kind:          models.KindPurchase,
		Category:      models.CategoryDining,
		Subtype:       models.SubtypeOneOff,
		Confidence:    0.9,
		Status:        models.StatusAccepted,
		CreatedAt:     time.Date(2024, time.March, 10, 10, 0, 0, 0, time.UTC),
	}
	_, err = ledger.Insert(ctx, accepted)
	require.NoError(t, err)

	review := accepted
	review.ID = "rec-2"
	review.SourceEmailID = "m-2"
	review.Merchant = "PowerGrid"
	review.Confidence = 0.3
	review.Status = models.StatusNeedsReview
	_, err = ledger.Insert(ctx, review)
	require.NoError(t, err)

	return ledger
}

func TestWriteAcceptedWithHeaders(t *testing.T) {
	e := New(seedLedger(t), Options{IncludeHeaders: true}, nil)

	var buf bytes.Buffer
	require.NoError(t, e.Write(context.Background(), "alice", &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2, "header plus the one accepted record")
	assert.Equal(t, "ID,User,Date,Merchant,Amount,Currency,Kind,Category,Subtype,Confidence,Status,DuplicateOf,SourceEmailID", lines[0])
	assert.Equal(t, "rec-1,alice,2024-03-10,CoffeeCo,4.50,USD,purchase,dining,one_off,0.90,accepted,,m-1", lines[1])
}

func TestWriteWithoutHeaders(t *testing.T) {
	e := New(seedLedger(t), Options{}, nil)

	var buf bytes.Buffer
	require.NoError(t, e.Write(context.Background(), "alice", &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "rec-1,"))
}

func TestWriteCustomDelimiter(t *testing.T) {
	e := New(seedLedger(t), Options{Delimiter: ';', IncludeHeaders: true}, nil)

	var buf bytes.Buffer
	require.NoError(t, e.Write(context.Background(), "alice", &buf))

	assert.Contains(t, buf.String(), "rec-1;alice;2024-03-10")
}

func TestWriteSelectedStatuses(t *testing.T) {
	e := New(seedLedger(t), Options{
		Statuses: []models.Status{models.StatusAccepted, models.StatusNeedsReview},
	}, nil)

	var buf bytes.Buffer
	require.NoError(t, e.Write(context.Background(), "alice", &buf))

	out := buf.String()
	assert.Contains(t, out, "rec-1")
	assert.Contains(t, out, "rec-2")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "ledger.csv")
	e := New(seedLedger(t), Options{IncludeHeaders: true}, nil)

	require.NoError(t, e.WriteFile(context.Background(), "alice", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CoffeeCo")
}

func TestWriteEmptyLedger(t *testing.T) {
	e := New(store.NewMemoryLedger(), Options{IncludeHeaders: true}, nil)

	var buf bytes.Buffer
	require.NoError(t, e.Write(context.Background(), "nobody", &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1, "just the header")
}
