package cli

import (
	"os"
	"path/filepath"
	"testing"

	clierrors "github.com/mailtmpl/cli/internal/errors"
	"github.com/mailtmpl/cli/internal/model"
	"github.com/mailtmpl/cli/internal/remote/remotetest"
	"github.com/mailtmpl/cli/internal/state"
	"github.com/stretchr/testify/require"
)

func TestRunExport(t *testing.T) {
	srv := setupTenant(t, remotetest.Options{})
	srv.Seed(
		model.Template{TemplateType: "SignIn", LanguageTag: "en", Details: &model.Details{
			Subject: "Sign in", Content: "<p>{{code}}</p>", ContentType: model.ContentTypeHTML,
		}},
		model.Template{TemplateType: "Register", LanguageTag: "de", Details: &model.Details{
			Subject: "Willkommen", Content: "Hallo", ContentType: model.ContentTypePlain, SendFrom: "Team",
		}},
	)
	exportOut = filepath.Join(t.TempDir(), "out")
	stateDB = filepath.Join(t.TempDir(), "state.db")

	cmd, out := newTestCmd()
	require.NoError(t, runExport(cmd, nil))
	require.Contains(t, out.String(), "Exported 2 of 2 remote template(s) to "+exportOut)

	subject, err := os.ReadFile(filepath.Join(exportOut, "SignIn", "en", "subject.txt"))
	require.NoError(t, err)
	require.Equal(t, "Sign in\n", string(subject))
	require.FileExists(t, filepath.Join(exportOut, "Register", "de", "content.txt"))
	require.FileExists(t, filepath.Join(exportOut, "Register", "de", "meta.json"))

	journal := state.NewManager()
	require.NoError(t, journal.Initialize(stateDB))
	defer journal.Close()
	runs, err := journal.History(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, state.OperationExport, runs[0].Operation)
}

func TestRunExport_ThenSyncUpdatesEverything(t *testing.T) {
	srv := setupTenant(t, remotetest.Options{})
	srv.Seed(
		model.Template{TemplateType: "SignIn", LanguageTag: "en", Details: &model.Details{
			Subject: "Sign in", Content: "<p>{{code}}</p>", ContentType: model.ContentTypeHTML,
		}},
		model.Template{TemplateType: "SignIn", LanguageTag: "fr", Details: &model.Details{
			Subject: "Connexion", Content: "Code {{code}}", ContentType: model.ContentTypePlain,
		}},
	)
	before := srv.Templates()
	exportOut = t.TempDir()

	cmd, _ := newTestCmd()
	require.NoError(t, runExport(cmd, nil))

	syncDirs = []string{exportOut}
	cmd, out := newTestCmd()
	require.NoError(t, runSync(cmd, nil))
	require.Contains(t, out.String(), "Synced 2 template(s): 2 updated")
	require.Equal(t, before, srv.Templates())
}

func TestRunExport_Filters(t *testing.T) {
	srv := setupTenant(t, remotetest.Options{})
	srv.Seed(
		model.Template{TemplateType: "SignIn", LanguageTag: "en", Details: &model.Details{Subject: "a", Content: "a"}},
		model.Template{TemplateType: "Register", LanguageTag: "en", Details: &model.Details{Subject: "b", Content: "b"}},
	)
	exportOut = t.TempDir()
	exportOnly = []string{"Register"}

	cmd, out := newTestCmd()
	require.NoError(t, runExport(cmd, nil))
	require.Contains(t, out.String(), "Exported 1 of 2 remote template(s)")
	require.Contains(t, out.String(), "(types Register)")
	require.NoDirExists(t, filepath.Join(exportOut, "SignIn"))
}

func TestRunExport_ListingUnavailable(t *testing.T) {
	setupTenant(t, remotetest.Options{NoListing: true})
	exportOut = filepath.Join(t.TempDir(), "out")

	cmd, _ := newTestCmd()
	err := runExport(cmd, nil)
	require.Error(t, err)
	require.Equal(t, clierrors.CodeListingUnavailable, clierrors.CodeOf(err))
	require.Contains(t, err.Error(), "EMAIL_TEMPLATES_PATH")
	require.NoDirExists(t, exportOut)
}

func TestRunExport_CustomTemplatesPath(t *testing.T) {
	srv := setupTenant(t, remotetest.Options{BasePath: "/api/custom-templates"})
	srv.Seed(model.Template{TemplateType: "SignIn", LanguageTag: "en", Details: &model.Details{Subject: "a", Content: "a"}})
	templatesPath = "/custom-templates/"
	exportOut = t.TempDir()

	cmd, out := newTestCmd()
	require.NoError(t, runExport(cmd, nil))
	require.Contains(t, out.String(), "Exported 1 of 1")
}
