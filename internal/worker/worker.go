// Package worker builds the exact remote invocation the on-client
// archiver runs for one target, plus the incremental state-file
// maintenance that precedes it.
package worker

import (
	"path"
	"strings"

	"github.com/rudolphpienaar/backupmgr/internal/archive"
	"github.com/rudolphpienaar/backupmgr/internal/transport"
)

// DefaultArchiverBin is the archiver entry point appended to the
// per-host scriptDir. The binary itself is an external collaborator.
const DefaultArchiverBin = "archive_push"

// libPathEnv carries the record's library path to the archiver.
const libPathEnv = "TCLLIBPATH"

// Params collects everything the command contract needs for one target.
type Params struct {
	Record      *archive.Record
	Target      archive.Target
	Rule        archive.Rule
	Label       string
	Device      string
	Receiver    string
	IncReset    bool
	ArchiverBin string
}

// Invocation is the fully built remote work for one target: optional
// state-file maintenance commands, then the archiver itself.
type Invocation struct {
	Target archive.Target
	Pre    []transport.Command
	Main   transport.Command
}

// PathSlug flattens a filesystem path for state-file names: '/' maps
// to ':'.
func PathSlug(fsPath string) string {
	return strings.ReplaceAll(fsPath, "/", ":")
}

// StateFilePrefix names the per-(archive, host, path) family of
// incremental state files on the client.
func StateFilePrefix(archiveName, host, fsPath string) string {
	return archiveName + "::" + host + ":" + PathSlug(fsPath)
}

// StateFileName names the state file one rule reads and appends.
func StateFileName(archiveName, host, fsPath string, rule archive.Rule) string {
	return StateFilePrefix(archiveName, host, fsPath) + "-" + string(rule)
}

// Build resolves the per-host worker paths and assembles the archiver
// argv. Fields are never concatenated into a shell string here; the
// transport renders and escapes them once at its boundary.
func Build(p Params) Invocation {
	paths := p.Record.Worker.Resolve(p.Target.Host)
	bin := p.ArchiverBin
	if bin == "" {
		bin = DefaultArchiverBin
	}
	receiver := p.Receiver
	if receiver == "" {
		receiver = "cat"
	}

	verbose := "on"
	if p.Rule == archive.RuleMonthly {
		verbose = "off"
	}
	incReset := "no"
	if p.IncReset {
		incReset = "yes"
	}

	argv := []string{
		path.Join(paths.ScriptDir, bin),
		"--user", p.Record.Manager.User,
		"--host", p.Record.Manager.Host,
		"--device", p.Device,
		"--label", p.Label,
		"--listFileDir", p.Record.Storage.ListFileDir,
		"--filesys", p.Target.Path,
		"--currentRule", string(p.Rule),
		"--buffer", receiver,
		"--incReset", incReset,
		"--verbose", verbose,
	}

	env := map[string]string{}
	if paths.LibPath != "" {
		env[libPathEnv] = paths.LibPath
	}

	return Invocation{
		Target: p.Target,
		Pre:    stateFileCommands(p),
		Main:   transport.Command{Argv: argv, Env: env},
	}
}

// stateFileCommands prepares the client's incremental chain before the
// stream starts. Monthly purges the whole family and seeds a fresh
// base; an incremental reset purges and reseeds the rule's reference
// base. The archiver also receives incReset so its own bookkeeping
// stays consistent.
func stateFileCommands(p Params) []transport.Command {
	dir := p.Record.Storage.ListFileDir
	prefix := StateFilePrefix(p.Record.Meta.Name, p.Target.Host, p.Target.Path)

	purgeFamily := transport.Command{Argv: []string{
		"find", dir, "-maxdepth", "1", "-name", prefix + "-*", "-delete",
	}}
	seed := func(rule archive.Rule) transport.Command {
		return transport.Command{Argv: []string{
			"touch", path.Join(dir, prefix+"-"+string(rule)),
		}}
	}

	switch p.Rule {
	case archive.RuleMonthly:
		return []transport.Command{purgeFamily, seed(archive.RuleMonthly)}
	case archive.RuleWeekly:
		if p.IncReset {
			base, _ := p.Rule.Base()
			return []transport.Command{
				{Argv: []string{"rm", "-f", path.Join(dir, prefix+"-"+string(base))}},
				seed(base),
			}
		}
	case archive.RuleDaily:
		if p.IncReset {
			base, _ := p.Rule.Base()
			return []transport.Command{purgeFamily, seed(base)}
		}
	}
	return nil
}
