package mailbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/solatis/mailscore/internal/types"
)

var infoFlags = []struct {
	letter byte
	flag   types.Flags
}{
	{'F', types.FlagFlagged},
	{'R', types.FlagReplied},
	{'S', types.FlagRead},
	{'T', types.FlagDeleted},
}

// parseInfo splits Maildir info letters into record flags and the letters
// that have no record flag.
func parseInfo(info string) (types.Flags, string) {
	var flags types.Flags
	var extra []byte
	for i := 0; i < len(info); i++ {
		known := false
		for _, f := range infoFlags {
			if info[i] == f.letter {
				flags |= f.flag
				known = true
				break
			}
		}
		if !known {
			extra = append(extra, info[i])
		}
	}
	return flags, string(extra)
}

// infoLetters renders flags plus extra letters in ASCII order, as Maildir
// requires.
func infoLetters(flags types.Flags, extra string) string {
	letters := []byte(extra)
	for _, f := range infoFlags {
		if flags.Has(f.flag) {
			letters = append(letters, f.letter)
		}
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	return string(letters)
}

// Sync writes changed flags back by renaming files into cur/ with updated
// info letters. It returns the number of files renamed.
func (m *Mailbox) Sync() (int, error) {
	renamed := 0
	for _, e := range m.entries {
		if !e.email.Changed() {
			continue
		}

		name := e.base + infoSep + infoLetters(e.email.Flags(), e.extra)
		from := e.path(m.root)
		to := filepath.Join(m.root, "cur", name)
		if from != to {
			if err := os.Rename(from, to); err != nil {
				return renamed, fmt.Errorf("failed to rename %s: %w", e.name, err)
			}
			renamed++
			m.logger.Debug("maildir flags synced", "file", name)
		}
		e.dir, e.name = "cur", name
		e.email.ClearChanged()
	}
	return renamed, nil
}

// ParseInfoFlags returns the record flags encoded in a Maildir file name.
func ParseInfoFlags(name string) types.Flags {
	i := strings.LastIndex(name, infoSep)
	if i < 0 {
		return 0
	}
	flags, _ := parseInfo(name[i+len(infoSep):])
	return flags
}
