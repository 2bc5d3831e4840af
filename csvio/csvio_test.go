package csvio_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payments-engine/csvio"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/money"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func lines(rows ...string) string { return strings.Join(rows, "\n") + "\n" }

// run replays input through a fresh engine and returns the account CSV.
func run(t *testing.T, input string) (string, csvio.Report) {
	t.Helper()
	e := ledger.NewEngine()
	rep, err := csvio.Replay(context.Background(), strings.NewReader(input), e, zerolog.Nop())
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, csvio.WriteAccounts(&out, e.Snapshot()))
	return out.String(), rep
}

// =============================================================================
// READER
// =============================================================================

func TestReader_ParsesAllTypes(t *testing.T) {
	r := csvio.NewReader(strings.NewReader(lines(
		"type,       client, tx, amount",
		"deposit,    1, 3, 1",
		"withdrawal, 1, 4, 0.0001",
		"dispute,    1, 5,",
		"resolve,    1, 5,",
		"chargeback, 2, 15",
	)))

	var got []ledger.Event
	for {
		evt, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, evt)
	}

	assert.Equal(t, []ledger.Event{
		ledger.Deposit{Client: 1, Tx: 3, Amount: money.MustParse("1")},
		ledger.Withdrawal{Client: 1, Tx: 4, Amount: money.FromUnits(1)},
		ledger.Dispute{Client: 1, Tx: 5},
		ledger.Resolve{Client: 1, Tx: 5},
		ledger.Chargeback{Client: 2, Tx: 15},
	}, got)
}

func TestReader_HeaderOptional(t *testing.T) {
	r := csvio.NewReader(strings.NewReader("deposit,1,1,2.5\n"))
	evt, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, ledger.Deposit{Client: 1, Tx: 1, Amount: money.MustParse("2.5")}, evt)

	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_MalformedRowsAreRecoverable(t *testing.T) {
	cases := []struct {
		row  string
		want error
	}{
		{"deposit, 1, 1, 1.00001", money.ErrPrecision},
		{"deposit, 1, 1, abc", money.ErrSyntax},
		{"transfer, 1, 1, 1", csvio.ErrUnknownType},
		{"deposit, 70000, 1, 1", csvio.ErrInvalidClient},
		{"deposit, -1, 1, 1", csvio.ErrInvalidClient},
		{"deposit, 1, 4294967296, 1", csvio.ErrInvalidTx},
		{"deposit, 1, 1,", csvio.ErrMissingAmount},
		{"withdrawal, 1, 1", csvio.ErrMissingAmount},
		{"deposit, 1", csvio.ErrFieldCount},
	}

	for _, tc := range cases {
		t.Run(tc.row, func(t *testing.T) {
			r := csvio.NewReader(strings.NewReader(lines("type,client,tx,amount", tc.row, "deposit,9,9,1")))

			_, err := r.Read()
			assert.ErrorIs(t, err, tc.want)

			var rowErr *csvio.RowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, 2, rowErr.Line)

			evt, err := r.Read()
			require.NoError(t, err, "reader must continue after a bad row")
			assert.Equal(t, ledger.ClientID(9), evt.ClientID())
		})
	}
}

func TestReader_SkipsBlankLines(t *testing.T) {
	r := csvio.NewReader(strings.NewReader("type,client,tx,amount\n\n   \ndeposit,1,1,1\n"))
	evt, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, ledger.EventDeposit, evt.Type())
}

// =============================================================================
// WRITER
// =============================================================================

func TestWriteAccounts(t *testing.T) {
	var buf bytes.Buffer
	err := csvio.WriteAccounts(&buf, []ledger.Account{
		{Client: 2, Available: money.MustParse("1.5"), Total: money.MustParse("1.5")},
		{Client: 1, Available: money.MustParse("-2"), Held: money.MustParse("0.0001"), Total: money.MustParse("-1.9999"), Locked: true},
	})
	require.NoError(t, err)

	assert.Equal(t, lines(
		"client,available,held,total,locked",
		"2,1.5000,0.0000,1.5000,false",
		"1,-2.0000,0.0001,-1.9999,true",
	), buf.String())
}

// =============================================================================
// REPLAY
// =============================================================================

func TestReplay_MultipleClients(t *testing.T) {
	out, rep := run(t, lines(
		"type,       client, tx, amount",
		"withdrawal, 2, 1, 10",
		"deposit,    1, 2, 100",
		"deposit,    1,10, 50",
		"withdrawal, 2, 3, 10",
		"deposit,    2, 4, 200",
		"withdrawal, 2, 5, 10",
		"dispute,    1, 5,",
		"resolve,    1, 5,",
		"deposit,    3, 6, 75",
		"deposit,    3, 7, 10",
		"withdrawal, 3, 8, 80",
		"dispute,    2, 6,",
		"dispute,    3, 6,",
		"chargeback, 3, 6,",
		"dispute,    1,10,",
	))

	assert.Equal(t, lines(
		"client,available,held,total,locked",
		"1,100.0000,50.0000,150.0000,false",
		"2,190.0000,0.0000,190.0000,false",
		"3,-70.0000,0.0000,-70.0000,true",
	), out)
	assert.Equal(t, 15, rep.Rows)
	assert.Zero(t, rep.Malformed)
	assert.Equal(t, 10, rep.Stats.Applied)
	assert.Equal(t, 5, rep.Stats.RejectedTotal())
}

func TestReplay_ChargebackFreezesAccount(t *testing.T) {
	out, _ := run(t, lines(
		"type,       client, tx, amount",
		"deposit,    1, 4, 1.0",
		"deposit,    1, 5, 2.0",
		"dispute,    1, 5,",
		"chargeback, 1, 5,",
		"withdrawal, 1, 6, 0.5",
		"deposit,    1, 7, 0.1",
		"dispute,    1, 7,",
		"resolve,    1, 7,",
		"deposit,    2, 8, 1.0",
	))

	assert.Equal(t, lines(
		"client,available,held,total,locked",
		"1,1.0000,0.0000,1.0000,true",
		"2,1.0000,0.0000,1.0000,false",
	), out)
}

func TestReplay_MalformedRowsDoNotStopTheRun(t *testing.T) {
	out, rep := run(t, lines(
		"type, client, tx, amount",
		"deposit, 1, 1, 1.00001",
		"bogus,   1, 2, 1",
		"deposit, 1, 3, 2.5",
		"deposit, x, 4, 1",
		"withdrawal, 1, 5,",
		"withdrawal, 1, 6, 0.5",
	))

	assert.Equal(t, lines(
		"client,available,held,total,locked",
		"1,2.0000,0.0000,2.0000,false",
	), out)
	assert.Equal(t, 4, rep.Malformed)
	assert.Equal(t, 2, rep.Rows)
}

func TestReplay_OverflowIsCountedAndSkipped(t *testing.T) {
	out, rep := run(t, lines(
		"type, client, tx, amount",
		"deposit, 1, 1, 922337203685477.5807",
		"deposit, 1, 2, 1",
		"withdrawal, 1, 3, 0.5807",
	))

	assert.Equal(t, lines(
		"client,available,held,total,locked",
		"1,922337203685477.0000,0.0000,922337203685477.0000,false",
	), out)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Stats.Failed)
}

func TestReplay_EmptyInput(t *testing.T) {
	out, rep := run(t, "type,client,tx,amount\n")
	assert.Equal(t, lines("client,available,held,total,locked"), out)
	assert.Zero(t, rep.Rows)
}

func TestReplay_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := csvio.Replay(ctx, strings.NewReader("deposit,1,1,1\n"), ledger.NewEngine(), zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestReplay_ReadFailureAborts(t *testing.T) {
	_, err := csvio.Replay(context.Background(), failingReader{}, ledger.NewEngine(), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}
