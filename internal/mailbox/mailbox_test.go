package mailbox

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/mailscore/internal/pattern"
	"github.com/solatis/mailscore/internal/score"
	"github.com/solatis/mailscore/internal/types"
)

const plainMessage = "From: Alice Smith <alice@example.com>\r\n" +
	"To: bob@example.com, Team <team@lists.example.com>\r\n" +
	"Cc: carol@example.org\r\n" +
	"Subject: Quarterly report\r\n" +
	"Date: Thu, 14 Mar 2024 09:30:00 +0000\r\n" +
	"Message-ID: <abc123@example.com>\r\n" +
	"References: <parent@example.com>\r\n" +
	"X-Label: work\r\n" +
	"Keywords: inbox, important\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Hello Bob,\r\nthe numbers are attached.\r\n"

const htmlMessage = "From: news@shop.example\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Big sale\r\n" +
	"Date: Fri, 15 Mar 2024 10:00:00 +0000\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><p>Everything <b>half</b> price</p></body></html>\r\n"

const multipartMessage = "From: carol@example.org\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: photos\r\n" +
	"Date: Wed, 13 Mar 2024 08:00:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"see attached\r\n" +
	"--XYZ\r\n" +
	"Content-Type: image/png\r\n" +
	"Content-Disposition: attachment; filename=a.png\r\n" +
	"\r\n" +
	"PNGDATA\r\n" +
	"--XYZ--\r\n"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeMaildir creates a Maildir with the given files, keyed by "cur/name"
// or "new/name".
func writeMaildir(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for _, sub := range []string{"cur", "new", "tmp"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, sub), 0755))
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0644))
	}
	return root
}

func TestReadEnvelope(t *testing.T) {
	env, err := ReadEnvelope(strings.NewReader(plainMessage))
	require.NoError(t, err)

	assert.Equal(t, "Quarterly report", env.Subject)
	assert.Equal(t, []types.Address{{Name: "Alice Smith", Email: "alice@example.com"}}, env.From)
	require.Len(t, env.To, 2)
	assert.Equal(t, "Team", env.To[1].Name)
	assert.Equal(t, "carol@example.org", env.Cc[0].Email)
	assert.Equal(t, "<abc123@example.com>", env.MessageID)
	assert.Equal(t, []string{"<parent@example.com>"}, env.References)
	assert.Equal(t, "work", env.XLabel)
	assert.Equal(t, []string{"inbox", "important"}, env.Tags)
	assert.Equal(t, 2024, env.Date.Year())
}

func TestReadBody(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		body, err := ReadBody(strings.NewReader(plainMessage))
		require.NoError(t, err)
		assert.Contains(t, body.Text, "the numbers are attached.")
		assert.Contains(t, body.Header, "Subject: Quarterly report")
		assert.Equal(t, []string{"text/plain"}, body.MIMETypes)
		assert.Zero(t, body.Attachments)
	})

	t.Run("html only", func(t *testing.T) {
		body, err := ReadBody(strings.NewReader(htmlMessage))
		require.NoError(t, err)
		assert.Contains(t, body.Text, "half")
		assert.NotContains(t, body.Text, "<b>")
	})

	t.Run("multipart", func(t *testing.T) {
		body, err := ReadBody(strings.NewReader(multipartMessage))
		require.NoError(t, err)
		assert.Equal(t, []string{"multipart/mixed", "text/plain", "image/png"}, body.MIMETypes)
		assert.Equal(t, 1, body.Attachments)
		assert.Contains(t, body.Text, "see attached")
	})
}

func TestParseInfo(t *testing.T) {
	flags, extra := parseInfo("DFPS")
	assert.Equal(t, types.FlagFlagged|types.FlagRead, flags)
	assert.Equal(t, "DP", extra)
	assert.Equal(t, "DFPS", infoLetters(flags, extra))
	assert.Equal(t, "RST", infoLetters(types.FlagDeleted|types.FlagRead|types.FlagReplied|types.FlagOld, ""))
	assert.Equal(t, types.FlagDeleted, ParseInfoFlags("1.2.host:2,T"))
	assert.Zero(t, ParseInfoFlags("1.2.host"))
}

func TestOpen(t *testing.T) {
	root := writeMaildir(t, map[string]string{
		"cur/1710408600.1.host:2,S":  plainMessage,
		"cur/1710320400.2.host:2,FR": multipartMessage,
		"new/1710496800.3.host":      htmlMessage,
		"new/.hidden":                "ignored",
	})

	mb, err := Open(root, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.Equal(t, 3, mb.Len())

	// Sorted by date: multipart (13th), plain (14th), html (15th).
	assert.Equal(t, "photos", mb.Email(0).Envelope().Subject)
	assert.Equal(t, "Quarterly report", mb.Email(1).Envelope().Subject)
	assert.Equal(t, "Big sale", mb.Email(2).Envelope().Subject)
	for i := 0; i < mb.Len(); i++ {
		assert.Equal(t, i+1, mb.Email(i).Number())
	}

	assert.Equal(t, types.FlagFlagged|types.FlagReplied|types.FlagOld, mb.Email(0).Flags())
	assert.Equal(t, types.FlagRead, mb.Email(1).Flags())
	assert.Equal(t, types.Flags(0), mb.Email(2).Flags())

	assert.Equal(t, 0, mb.Deleted())
	assert.Equal(t, 1, mb.Flagged())
	assert.Equal(t, 2, mb.Unread())

	body, err := mb.Email(0).Body()
	require.NoError(t, err)
	assert.Equal(t, 1, body.Attachments)
}

func TestOpen_NotMaildir(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}

func TestMailbox_DrivesEngine(t *testing.T) {
	root := writeMaildir(t, map[string]string{
		"cur/1.host:2,S": plainMessage,
		"new/2.host":     htmlMessage,
		"new/3.host":     multipartMessage,
	})
	mb, err := Open(root, WithSort(score.SortScore, score.SortDate), WithLogger(quietLogger()))
	require.NoError(t, err)

	store := score.NewStore()
	require.NoError(t, store.UpsertToken("~s sale", "=-9999"))
	require.NoError(t, store.UpsertToken("~f alice", "50"))
	require.NoError(t, store.UpsertToken("~b attached", "5"))
	engine := score.NewEngine(store, score.Thresholds{Delete: 0, Read: 0, Flag: 50}, score.WithLogger(quietLogger()))

	var _ score.Mailbox = mb
	assert.Equal(t, 3, engine.Rescore(mb))

	needResort, subthreads := mb.NeedsResort()
	assert.True(t, needResort)
	assert.False(t, subthreads)
	assert.True(t, mb.NeedsRedraw())

	// The sale was floored to zero: deleted and read.
	assert.Equal(t, 1, mb.Deleted())
	assert.Equal(t, 1, mb.Unread())
	assert.Equal(t, 1, mb.Flagged())

	require.True(t, mb.Resort())
	assert.Equal(t, "Quarterly report", mb.Email(0).Envelope().Subject)
	assert.Equal(t, 55, mb.Email(0).Score())
	assert.Equal(t, "photos", mb.Email(1).Envelope().Subject)
	assert.Equal(t, 5, mb.Email(1).Score())
	assert.Equal(t, "Big sale", mb.Email(2).Envelope().Subject)
	assert.False(t, mb.Resort(), "no resort pending")
}

func TestMailbox_Sync(t *testing.T) {
	root := writeMaildir(t, map[string]string{
		"cur/1.host:2,S": plainMessage,
		"new/2.host":     htmlMessage,
	})
	mb, err := Open(root, WithLogger(quietLogger()))
	require.NoError(t, err)

	// Index 1 is the html message (later date).
	mb.Email(1).MarkDeleted(true)
	mb.Email(1).MarkRead(true)

	n, err := mb.Sync()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(filepath.Join(root, "cur", "2.host:2,ST"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "new", "2.host"))
	assert.True(t, os.IsNotExist(err))
	assert.False(t, mb.Email(1).Changed())
	assert.Equal(t, filepath.Join(root, "cur", "2.host:2,ST"), mb.FilePath(1))

	// Body still loads from the new location.
	body, err := mb.Email(1).Body()
	require.NoError(t, err)
	assert.Contains(t, body.Text, "price")

	n, err = mb.Sync()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMailbox_QueryWithPattern(t *testing.T) {
	root := writeMaildir(t, map[string]string{
		"cur/1.host:2,S": plainMessage,
		"new/2.host":     htmlMessage,
	})
	mb, err := Open(root, WithLogger(quietLogger()))
	require.NoError(t, err)

	p := pattern.MustCompile("~N | ~b numbers", pattern.ClassAll)
	cache := pattern.NewCache()
	assert.True(t, pattern.Evaluate(p, mb.Email(0), pattern.MatchMailbox, cache))
	assert.True(t, pattern.Evaluate(p, mb.Email(1), pattern.MatchMailbox, nil))
}
