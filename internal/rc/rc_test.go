package rc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/mailscore/internal/addrbook"
	"github.com/solatis/mailscore/internal/hook"
	"github.com/solatis/mailscore/internal/score"
	"github.com/solatis/mailscore/internal/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store *score.Store
	book  *addrbook.Book
	hooks *hook.Registry
	in    *Interpreter
}

func newFixture() *fixture {
	f := &fixture{
		store: score.NewStore(),
		book:  addrbook.New(),
	}
	f.hooks = hook.New("(~f %s !~P) | (~P ~C %s)", f.book)
	f.in = New(f.store, f.book, f.hooks, WithLogger(quietLogger()))
	return f
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"# comment", nil},
		{"score ~A 10", []string{"score", "~A", "10"}},
		{`score "~f alice" 10`, []string{"score", "~f alice", "10"}},
		{`score '~s \[x\]' =5`, []string{"score", `~s \[x\]`, "=5"}},
		{`score "~s \"q\"" 1`, []string{"score", `~s "q"`, "1"}},
		{`alias a\ b x`, []string{"alias", "a b", "x"}},
		{"score ~A 10 # trailing", []string{"score", "~A", "10"}},
		{"lists a#b", []string{"lists", "a#b"}},
		{`x ""`, []string{"x", ""}},
		{"\tscore\t~A  1\r", []string{"score", "~A", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Tokenize(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Tokenize(`score "~f alice 10`)
	assert.ErrorIs(t, err, ErrUnterminatedQuote)
}

func TestExec_Score(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.in.Exec(`score "~f alice" 10`))
	require.NoError(t, f.in.Exec(`score "~s urgent" =50`))

	rules := f.store.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "~f alice", rules[0].Source)
	assert.Equal(t, 10, rules[0].Value)
	assert.True(t, rules[1].Exact)
}

func TestExec_ScoreArgumentErrors(t *testing.T) {
	f := newFixture()

	err := f.in.Exec("score ~A")
	require.ErrorIs(t, err, types.ErrTooFewArguments)
	assert.Equal(t, "score: too few arguments", err.Error())

	err = f.in.Exec("score ~A 1 2")
	require.ErrorIs(t, err, types.ErrTooManyArguments)
	assert.Equal(t, "score: too many arguments", err.Error())

	assert.ErrorIs(t, f.in.Exec("score ~A ten"), types.ErrInvalidNumber)
	assert.ErrorIs(t, f.in.Exec(`score "~s" 1`), types.ErrMissingParameter)
	assert.Equal(t, 0, f.store.Len())
	assert.False(t, f.store.NeedsRescore())
}

func TestExec_Unscore(t *testing.T) {
	f := newFixture()
	for _, line := range []string{"score ~A 1", "score ~F 2", "score ~N 3"} {
		require.NoError(t, f.in.Exec(line))
	}

	require.NoError(t, f.in.Exec("unscore ~A ~N ~missing"))
	rules := f.store.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "~F", rules[0].Source)

	require.NoError(t, f.in.Exec("unscore *"))
	assert.Equal(t, 0, f.store.Len())

	assert.ErrorIs(t, f.in.Exec("unscore"), types.ErrTooFewArguments)
}

func TestExec_Groups(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.in.Exec(`group -group work -group all -addr boss@corp.example -rx @corp\.example$`))

	assert.True(t, f.book.InGroup("work", "boss@corp.example"))
	assert.True(t, f.book.InGroup("all", "peer@corp.example"))
	assert.True(t, f.store.NeedsRescore())

	require.NoError(t, f.in.Exec(`ungroup -group work -rx @corp\.example$`))
	assert.False(t, f.book.InGroup("work", "peer@corp.example"))
	assert.True(t, f.book.InGroup("work", "boss@corp.example"))

	require.NoError(t, f.in.Exec("ungroup -group all *"))
	assert.False(t, f.book.InGroup("all", "boss@corp.example"))

	assert.ErrorIs(t, f.in.Exec("group -addr x@example.com"), types.ErrTooFewArguments)
	assert.ErrorIs(t, f.in.Exec("group -group g"), types.ErrTooFewArguments)
	assert.ErrorIs(t, f.in.Exec("group -group g stray -addr x@example.com"), types.ErrTooManyArguments)
	assert.ErrorIs(t, f.in.Exec("group -group"), types.ErrTooFewArguments)
	assert.ErrorIs(t, f.in.Exec("group -group g -rx ("), types.ErrInvalidRegex)
}

func TestExec_Alias(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.in.Exec("alias -group family mom Mom <mom@family.example>, dad@family.example"))

	got, ok := f.book.Alias("mom")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, types.Address{Name: "Mom", Email: "mom@family.example"}, got[0])
	assert.True(t, f.book.IsAlias(types.Address{Email: "dad@family.example"}))
	assert.True(t, f.book.InGroup("family", "mom@family.example"))

	require.NoError(t, f.in.Exec("unalias mom"))
	assert.False(t, f.book.IsAlias(types.Address{Email: "dad@family.example"}))

	assert.ErrorIs(t, f.in.Exec("alias lonely"), types.ErrTooFewArguments)
}

func TestExec_ListsAndAlternates(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.in.Exec("lists ^golang-nuts@ ^go-dev@"))
	require.NoError(t, f.in.Exec("subscribe ^announce@"))
	require.NoError(t, f.in.Exec("alternates -group me ^me@"))

	assert.True(t, f.book.IsList(types.Address{Email: "go-dev@googlegroups.com"}))
	assert.True(t, f.book.IsSubscribed(types.Address{Email: "announce@example.org"}))
	assert.True(t, f.book.IsMe(types.Address{Email: "me@example.org"}))
	assert.True(t, f.book.InGroup("me", "me@example.org"))

	require.NoError(t, f.in.Exec("unlists *"))
	require.NoError(t, f.in.Exec("unsubscribe ^announce@"))
	require.NoError(t, f.in.Exec("unalternates ^me@"))
	assert.False(t, f.book.IsList(types.Address{Email: "go-dev@googlegroups.com"}))
	assert.False(t, f.book.IsSubscribed(types.Address{Email: "announce@example.org"}))
	assert.False(t, f.book.IsMe(types.Address{Email: "me@example.org"}))
}

func TestExec_Hooks(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.in.Exec(`message-hook "~f alice" "set signature=a"`))
	require.NoError(t, f.in.Exec("fcc-save-hook alice +alice"))
	require.NoError(t, f.in.Exec("send-hook ~A 'my_hdr X-A: 1'"))

	hooks := f.hooks.Hooks()
	require.Len(t, hooks, 4)
	assert.Equal(t, hook.Fcc, hooks[1].Type)
	assert.Equal(t, hook.Save, hooks[2].Type)

	require.NoError(t, f.in.Exec("unhook save-hook"))
	assert.Len(t, f.hooks.Hooks(), 3)
	require.NoError(t, f.in.Exec("unhook *"))
	assert.Empty(t, f.hooks.Hooks())

	assert.ErrorIs(t, f.in.Exec("save-hook ~A"), types.ErrTooFewArguments)
	assert.ErrorIs(t, f.in.Exec("unhook folder-hook"), types.ErrUnknownCommand)
}

func TestExec_UnknownCommand(t *testing.T) {
	f := newFixture()
	err := f.in.Exec("set sort=score")
	assert.ErrorIs(t, err, types.ErrUnknownCommand)
	assert.NoError(t, f.in.Exec("   # just a comment"))
}

func TestLoad_LineNumbers(t *testing.T) {
	f := newFixture()
	src := strings.Join([]string{
		"# rules",
		`score "~f alice" 10`,
		"",
		"score ~A",
		`score "~s never" 1`,
	}, "\n")

	err := f.in.Load(strings.NewReader(src), "rules.rc")
	require.Error(t, err)
	assert.Equal(t, "rules.rc:4: score: too few arguments", err.Error())
	assert.True(t, errors.Is(err, types.ErrTooFewArguments))
	assert.Equal(t, 1, f.store.Len(), "lines after the error are not run")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.rc")
	require.NoError(t, os.WriteFile(path, []byte("score ~F 5\nscore ~N 1\n"), 0644))

	f := newFixture()
	require.NoError(t, f.in.LoadFile(path))
	assert.Equal(t, 2, f.store.Len())

	assert.Error(t, f.in.LoadFile(filepath.Join(t.TempDir(), "missing.rc")))
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scores.rc")
	require.NoError(t, os.WriteFile(path, []byte("score ~A 1\n"), 0644))

	var reloads atomic.Int32
	w, err := NewWatcher(path, func() error {
		reloads.Add(1)
		return nil
	}, quietLogger())
	require.NoError(t, err)
	defer w.Close()
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.rc"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("score ~A 2\n"), 0644))

	require.Eventually(t, func() bool { return reloads.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
