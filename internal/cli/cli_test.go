package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mailtmpl/cli/internal/remote/remotetest"
	"github.com/spf13/cobra"
)

// resetGlobals restores every flag variable when the test ends and clears the
// configuration environment so the host cannot leak into a test.
func resetGlobals(t *testing.T) {
	t.Helper()

	saved := struct {
		envFile, endpoint, tenantID, clientID, clientSecret, templatesPath, stateDB string
		verbose                                                                       bool
		syncDirs, syncOnly, syncLanguages                                             []string
		syncDryRun, syncContinueOnError, syncAllowDuplicates                          bool
		exportOut                                                                     string
		exportOnly, exportLanguages                                                   []string
		listOnly, listLanguages                                                       []string
		listFormat                                                                    string
		listHistory, initNoInput, initForce                                           bool
		initPrompter                                                                  prompter
	}{
		envFile, endpoint, tenantID, clientID, clientSecret, templatesPath, stateDB,
		verbose,
		syncDirs, syncOnly, syncLanguages,
		syncDryRun, syncContinueOnError, syncAllowDuplicates,
		exportOut,
		exportOnly, exportLanguages,
		listOnly, listLanguages,
		listFormat,
		listHistory, initNoInput, initForce,
		initPrompter,
	}
	t.Cleanup(func() {
		envFile, endpoint, tenantID, clientID, clientSecret, templatesPath, stateDB =
			saved.envFile, saved.endpoint, saved.tenantID, saved.clientID, saved.clientSecret, saved.templatesPath, saved.stateDB
		verbose = saved.verbose
		syncDirs, syncOnly, syncLanguages = saved.syncDirs, saved.syncOnly, saved.syncLanguages
		syncDryRun, syncContinueOnError, syncAllowDuplicates = saved.syncDryRun, saved.syncContinueOnError, saved.syncAllowDuplicates
		exportOut = saved.exportOut
		exportOnly, exportLanguages = saved.exportOnly, saved.exportLanguages
		listOnly, listLanguages = saved.listOnly, saved.listLanguages
		listFormat = saved.listFormat
		listHistory, initNoInput, initForce = saved.listHistory, saved.initNoInput, saved.initForce
		initPrompter = saved.initPrompter
	})

	for _, key := range []string{"ENDPOINT", "TENANT_ID", "CLIENT_ID", "CLIENT_SECRET", "EMAIL_TEMPLATES_PATH", "PLATFORM_DOMAIN", "TIMEOUT", "STATE_DB"} {
		t.Setenv(key, "")
		t.Setenv("MAILTMPL_"+key, "")
	}

	envFile = ""
	endpoint, tenantID, clientID, clientSecret, templatesPath, stateDB = "", "", "", "", "", ""
	verbose = false
	syncDirs, syncOnly, syncLanguages = nil, nil, nil
	syncDryRun, syncContinueOnError, syncAllowDuplicates = false, false, false
	exportOut = DefaultTemplatesDir
	exportOnly, exportLanguages = nil, nil
	listOnly, listLanguages = nil, nil
	listFormat = formatTable
	listHistory, initNoInput, initForce = false, false, false
}

// setupTenant starts a fake tenant and points the global flags at it.
func setupTenant(t *testing.T, opts remotetest.Options) *remotetest.Server {
	t.Helper()
	resetGlobals(t)

	srv := remotetest.NewServer(opts)
	t.Cleanup(srv.Close)

	endpoint = srv.URL
	tenantID = "test"
	clientID = "m2m-app"
	clientSecret = "m2m-secret"
	return srv
}

// newTestCmd returns a command whose output is captured in the returned buffer.
func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	out := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetContext(context.Background())
	return cmd, out
}

// writeTemplateFiles lays out files relative to root.
func writeTemplateFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create dir for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}
}
