package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
)

func TestLoadSingleURL(t *testing.T) {
	t.Parallel()

	list, err := Load("  https://www.example.edu/  ")
	require.NoError(t, err)
	require.Equal(t, []string{"https://www.example.edu"}, list.URLs)
	require.Equal(t, []crawler.ScanRequest{{URL: "https://www.example.edu"}}, list.Requests())
}

func TestLoadFileTrimsSkipsAndDedupes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "# flagship campuses\n" +
		"https://www.a.edu/\n" +
		"\n" +
		"   https://www.b.edu  \n" +
		"https://www.a.edu\n" +
		"not a url\n" +
		"http://www.c.edu/admissions/\r\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	list, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"https://www.a.edu", "https://www.b.edu", "http://www.c.edu/admissions"}, list.URLs)
	require.Equal(t, []string{"not a url"}, list.Invalid)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("# nothing yet\n\n"), 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrNoURLs)
}

func TestLoadRejectsBlankInput(t *testing.T) {
	t.Parallel()

	_, err := Load("   ")
	require.Error(t, err)
}
