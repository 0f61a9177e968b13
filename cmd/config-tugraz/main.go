package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/stdr"
	"github.com/muesli/termenv"
	"github.com/spf13/pflag"

	tugraz "github.com/tu-graz-library/invenio-config-tugraz"
	"github.com/tu-graz-library/invenio-config-tugraz/idp"
	"github.com/tu-graz-library/invenio-config-tugraz/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cli carries the output streams of one invocation.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	errOut *termenv.Output
	log    logger.Logger
}

func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr, errOut: termenv.NewOutput(stderr)}
	c.log = logger.NewPhusluLogger("config-tugraz")

	args, verbose := extractVerbose(args)
	if verbose {
		stdr.SetVerbosity(1)
		c.log = logger.NewLogrLogger(stdr.New(log.New(stderr, "", log.LstdFlags)))
	}

	if len(args) < 1 {
		c.printUsage()
		return 1
	}
	switch args[0] {
	case "echo-saml-config":
		return c.echoSAMLConfig(args[1:])
	case "diff-policies":
		return c.diffPolicies(args[1:])
	case "explain":
		return c.explain(args[1:])
	case "validate":
		return c.validate(args[1:])
	case "help", "-h", "--help":
		c.printUsage()
		return 0
	default:
		c.fail("unknown command: %s", args[0])
		c.printUsage()
		return 1
	}
}

func extractVerbose(args []string) ([]string, bool) {
	out := make([]string, 0, len(args))
	verbose := false
	for _, a := range args {
		if a == "-v" || a == "--verbose" {
			verbose = true
			continue
		}
		out = append(out, a)
	}
	return out, verbose
}

func (c *cli) printUsage() {
	fmt.Fprintln(c.stderr, "config-tugraz - TU Graz repository configuration tool")
	fmt.Fprintln(c.stderr)
	fmt.Fprintln(c.stderr, "Usage:")
	fmt.Fprintln(c.stderr, "  config-tugraz echo-saml-config (--file PATH | --url URL) [--template-path PATH]")
	fmt.Fprintln(c.stderr, "  config-tugraz diff-policies [--config FILE] [--allow ACTION]...")
	fmt.Fprintln(c.stderr, "  config-tugraz explain --action ACTION [--user ID] [--roles R,..] [--ip ADDR] [--record-file FILE]")
	fmt.Fprintln(c.stderr, "  config-tugraz validate FILE")
	fmt.Fprintln(c.stderr)
	fmt.Fprintln(c.stderr, "Global flags: -v, --verbose  log debug output to stderr")
}

// fail prints a red error line to stderr.
func (c *cli) fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(c.stderr, c.errOut.String(msg).Foreground(termenv.ANSIRed).String())
}

func (c *cli) note(msg string) {
	fmt.Fprintln(c.stderr, c.errOut.String(msg).Foreground(termenv.ANSIYellow).String())
}

func (c *cli) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// parse returns the exit code to use when parsing ends the command.
func (c *cli) parse(fs *pflag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0, false
		}
		c.fail("%v", err)
		return 1, false
	}
	return 0, true
}

func (c *cli) echoSAMLConfig(args []string) int {
	var file, url, templatePath, lang string
	fs := c.flagSet("echo-saml-config")
	fs.StringVarP(&file, "file", "f", "", "path to SAML-XML file, mutually exclusive with --url")
	fs.StringVarP(&url, "url", "u", "", "url to SAML-XML file, mutually exclusive with --file")
	fs.StringVarP(&templatePath, "template-path", "t", "", "path to a template for formatting output")
	fs.StringVar(&lang, "lang", idp.DefaultLanguage, "preferred language for titles and descriptions")
	if code, ok := c.parse(fs, args); !ok {
		return code
	}

	if file != "" && url != "" {
		c.fail("`--file` and `--url` are mutually exclusive")
		return 1
	}
	if file == "" && url == "" {
		c.fail("must give exactly one of `--file`, `--url`")
		return 1
	}

	templates := idp.DefaultTemplates()
	if templatePath != "" {
		t, err := idp.LoadTemplates(templatePath)
		if err != nil {
			c.fail("%v", err)
			return 1
		}
		templates = t
	}

	var data []byte
	var err error
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = idp.Fetch(context.Background(), nil, url)
	}
	if err != nil {
		c.fail("%v", err)
		return 1
	}

	entities, err := idp.ParseMetadata(data)
	if err != nil {
		c.fail("%v", err)
		return 1
	}
	configs, err := idp.BuildConfigs(entities, lang)
	if err != nil {
		c.fail("%v", err)
		return 1
	}
	c.log.Debug("converted identity providers", "count", len(configs))
	if err := idp.Render(c.stdout, templates.Output, configs); err != nil {
		c.fail("%v", err)
		return 1
	}
	fmt.Fprintln(c.stdout)
	c.note(templates.Notes)
	return 0
}

func (c *cli) loadConfig(path string) (*tugraz.Config, error) {
	if path == "" {
		return tugraz.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return tugraz.NewConfigLoader().Load(filepath.Base(path), data)
}

func (c *cli) diffPolicies(args []string) int {
	var configPath string
	var allow []string
	fs := c.flagSet("diff-policies")
	fs.StringVarP(&configPath, "config", "c", "", "configuration file (yaml or json)")
	fs.StringSliceVar(&allow, "allow", nil, "additional allowed actions, '*' patterns accepted")
	if code, ok := c.parse(fs, args); !ok {
		return code
	}
	cfg, err := c.loadConfig(configPath)
	if err != nil {
		c.fail("%v", err)
		return 1
	}
	base, err := tugraz.BaseRDMRecordPolicy(cfg)
	if err != nil {
		c.fail("build base policy: %v", err)
		return 1
	}
	derived, err := tugraz.TUGrazRDMRecordPolicy(cfg, tugraz.WithPolicyLogger(c.log))
	if err != nil {
		c.fail("build tugraz policy: %v", err)
		return 1
	}
	allowed := append(append([]string(nil), tugraz.AllowedRDMDifferences...), allow...)
	divs := tugraz.DiffPolicies(derived, base, allowed...)
	for _, d := range divs {
		fmt.Fprintln(c.stdout, d.String())
	}
	if len(divs) > 0 {
		c.fail("%d unexpected divergences between %s and %s", len(divs), derived.Name(), base.Name())
		return 1
	}
	fmt.Fprintf(c.stdout, "%s is in sync with %s (%d actions)\n", derived.Name(), base.Name(), len(derived.Actions()))
	return 0
}

func (c *cli) explain(args []string) int {
	var (
		req                    tugraz.ExplainRequest
		configPath, recordFile string
		asJSON                 bool
	)
	fs := c.flagSet("explain")
	fs.StringVarP(&req.Action, "action", "a", "", "action to check")
	fs.StringVar(&req.UserID, "user", "", "account id of the requester")
	fs.StringSliceVar(&req.Roles, "roles", nil, "roles held by the requester")
	fs.StringSliceVar(&req.Needs, "needs", nil, "additional needs as method:value")
	fs.StringVar(&req.RemoteAddr, "ip", "", "requester ip address")
	fs.BoolVar(&req.SuperUser, "superuser", false, "requester is a super user")
	fs.StringVar(&recordFile, "record-file", "", "JSON file with the record")
	fs.StringVarP(&configPath, "config", "c", "", "configuration file (yaml or json)")
	fs.BoolVar(&asJSON, "json", false, "print the decision as JSON")
	if code, ok := c.parse(fs, args); !ok {
		return code
	}
	if req.Action == "" {
		c.fail("--action is required")
		return 1
	}
	if recordFile != "" {
		data, err := os.ReadFile(recordFile)
		if err != nil {
			c.fail("read record: %v", err)
			return 1
		}
		req.Record = &tugraz.Record{}
		if err := json.Unmarshal(data, req.Record); err != nil {
			c.fail("parse record: %v", err)
			return 1
		}
	}
	cfg, err := c.loadConfig(configPath)
	if err != nil {
		c.fail("%v", err)
		return 1
	}
	table, err := tugraz.TUGrazRDMRecordPolicy(cfg, tugraz.WithPolicyLogger(c.log))
	if err != nil {
		c.fail("build policy: %v", err)
		return 1
	}
	engine, err := tugraz.NewEngine(table, tugraz.WithLogger(c.log))
	if err != nil {
		c.fail("%v", err)
		return 1
	}
	decision, err := engine.ExplainRequest(context.Background(), &req)
	if err != nil {
		c.fail("%v", err)
		return 1
	}

	if asJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(decision); err != nil {
			c.fail("%v", err)
			return 1
		}
	} else {
		verdict := "DENY"
		if decision.Allowed {
			verdict = "ALLOW"
		}
		fmt.Fprintf(c.stdout, "%s %s (%s)\n", verdict, decision.Action, decision.Reason)
		for _, line := range decision.Trace {
			fmt.Fprintln(c.stdout, "  "+line)
		}
	}
	if !decision.Allowed {
		return 2
	}
	return 0
}

func (c *cli) validate(args []string) int {
	fs := c.flagSet("validate")
	if code, ok := c.parse(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		c.fail("usage: config-tugraz validate FILE")
		return 1
	}
	path := fs.Arg(0)
	cfg, err := c.loadConfig(path)
	if err != nil {
		c.fail("%v", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			c.fail("%s", line)
		}
		return 1
	}
	fmt.Fprintf(c.stdout, "%s: ok\n", path)
	return 0
}
