package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"studydesk/internal/assessment"
	fileutil "studydesk/internal/file"
)

const (
	jsonEntry = "questions.json"
	textEntry = "questions.txt"
)

// Store writes assessment bundles under dataDir/exports/<workspace>/.
type Store struct {
	dataDir string
}

func NewStore(dataDir string) *Store {
	if dataDir == "" {
		dataDir = "data"
	}
	return &Store{dataDir: dataDir}
}

func (s *Store) workspaceDir(workspaceID string) string {
	return filepath.Join(s.dataDir, "exports", workspaceID)
}

// Path is where the bundle of an assessment is written.
func (s *Store) Path(workspaceID, assessmentID string) string {
	return filepath.Join(s.workspaceDir(workspaceID), assessmentID+".zip")
}

// Write renders a completed assessment into a zip bundle holding
// questions.json and a printable questions.txt, and returns its path.
func (s *Store) Write(workspaceID string, a assessment.Assessment) (string, error) {
	if !a.Ready() {
		return "", assessment.ErrNotReady
	}
	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)
	if err := addEntry(zipWriter, jsonEntry, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a) //nolint:wrapcheck
	}); err != nil {
		return "", err
	}
	if err := addEntry(zipWriter, textEntry, func(w io.Writer) error {
		return Render(w, a)
	}); err != nil {
		return "", err
	}
	if err := zipWriter.Close(); err != nil {
		return "", fmt.Errorf("close zip writer: %w", err)
	}

	dest := s.Path(workspaceID, a.ID)
	if err := fileutil.WriteAtomic(dest, &buf); err != nil {
		return "", fmt.Errorf("write bundle: %w", err)
	}
	log.Info().Str("workspace_id", workspaceID).Str("assessment_id", a.ID).Str("path", dest).Msg("assessment exported")
	return dest, nil
}

// RemoveWorkspace deletes every bundle written for a workspace.
func (s *Store) RemoveWorkspace(workspaceID string) error {
	return fileutil.RemoveDir(s.workspaceDir(workspaceID)) //nolint:wrapcheck
}

func addEntry(zw *zip.Writer, name string, write func(io.Writer) error) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := write(w); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Render writes a plain-text version of the assessment. Correct options are
// marked with an asterisk.
func Render(w io.Writer, a assessment.Assessment) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Assessment: %s\n", a.SourceName)
	fmt.Fprintf(&sb, "Questions: %d  Difficulty: %s\n", len(a.Questions), a.Spec.Difficulty)
	if a.Spec.CustomInstructions != "" {
		fmt.Fprintf(&sb, "Instructions: %s\n", a.Spec.CustomInstructions)
	}
	for i, q := range a.Questions {
		fmt.Fprintf(&sb, "\n%d. [%s, %s] %s\n", i+1, strings.ReplaceAll(string(q.Type), "-", " "), q.Difficulty, q.Prompt)
		for j, opt := range q.Options {
			mark := " "
			if opt == q.CorrectAnswer {
				mark = "*"
			}
			fmt.Fprintf(&sb, "   %s %c. %s\n", mark, 'A'+j, opt)
		}
		if len(q.Options) == 0 && q.CorrectAnswer != "" {
			fmt.Fprintf(&sb, "   Answer: %s\n", q.CorrectAnswer)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err //nolint:wrapcheck
}

// Filename derives a download name from the source document, falling back
// to the assessment id.
func Filename(a assessment.Assessment) string {
	base := strings.TrimSuffix(a.SourceName, filepath.Ext(a.SourceName))
	var sb strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(base) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash && sb.Len() > 0 {
			sb.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.TrimSuffix(sb.String(), "-")
	if slug == "" {
		slug = a.ID
	}
	return "assessment-" + slug + ".zip"
}
