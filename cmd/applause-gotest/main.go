package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/applause/applause-gotest/pkg/applause"
	"github.com/applause/applause-gotest/pkg/autoapi"
	"github.com/applause/applause-gotest/pkg/gotest"
	"github.com/applause/applause-gotest/pkg/reporter"
	"github.com/applause/applause-gotest/pkg/xgotest"
)

const envVarPrefix = "APPLAUSE_"

// Exit codes.
const (
	exitFailure = 1
	exitConfig  = 2
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		EnvVars: []string{envVarPrefix + "CONFIG"},
		Usage:   "YAML file with api_key, product_id and base_url",
	}
	apiKeyFlag = &cli.StringFlag{
		Name:  "api-key",
		Usage: "API key of the automation API (overrides $" + autoapi.EnvAPIKey + ")",
	}
	productIDFlag = &cli.Int64Flag{
		Name:  "product-id",
		Usage: "product to report to (overrides $" + autoapi.EnvProductID + ")",
	}
	baseURLFlag = &cli.StringFlag{
		Name:  "base-url",
		Usage: "endpoint of the automation API (overrides $" + autoapi.EnvBaseURL + ")",
	}
	casesFlag = &cli.StringFlag{
		Name:    "cases",
		EnvVars: []string{envVarPrefix + "CASES"},
		Usage:   "text protobuf file mapping tests to Applause and TestRail case ids",
	}
	runFlag = &cli.StringFlag{
		Name:  "run",
		Usage: "run only the tests matching the regular expression (go test -run)",
	}
	goFlag = &cli.StringFlag{
		Name:    "go",
		Value:   "go",
		EnvVars: []string{envVarPrefix + "GO"},
		Usage:   "go command",
	}
	parallelFlag = &cli.IntFlag{
		Name:  "parallel",
		Value: 4,
		Usage: "number of packages tested at the same time",
	}
	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Value: 10 * time.Minute,
		Usage: "deadline of each go test process",
	}
	noConsoleFlag = &cli.BoolFlag{
		Name:  "no-console",
		Usage: "do not echo test logs to stdout",
	}
	noConsoleAssetFlag = &cli.BoolFlag{
		Name:  "no-console-asset",
		Usage: "do not upload test logs as " + applause.ConsoleLogAsset,
	}
	credentialFlag = &cli.StringFlag{
		Name:    "credential",
		EnvVars: []string{envVarPrefix + "CREDENTIAL"},
		Usage:   "JSON credential file for Google",
	}
	spreadsheetIDFlag = &cli.StringFlag{
		Name:    "spreadsheet-id",
		EnvVars: []string{envVarPrefix + "SPREADSHEET_ID"},
		Usage:   "spreadsheet to append the summary to",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "applause-gotest"
	app.Usage = "Run go test and report every test case to Applause"
	app.ArgsUsage = "[test file pattern...]"
	app.Flags = []cli.Flag{
		configFlag, apiKeyFlag, productIDFlag, baseURLFlag, casesFlag,
		runFlag, goFlag, parallelFlag, timeoutFlag, noConsoleFlag,
		noConsoleAssetFlag, credentialFlag, spreadsheetIDFlag,
	}
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err == nil {
			return
		}
		var exitErr cli.ExitCoder
		var cfgErr *autoapi.ConfigError
		switch {
		case errors.As(err, &exitErr):
			cli.HandleExitCoder(exitErr)
		case errors.As(err, &cfgErr):
			cli.HandleExitCoder(cli.Exit(err.Error(), exitConfig))
		default:
			cli.HandleExitCoder(cli.Exit(err.Error(), exitFailure))
		}
	}
	if err := app.RunContext(context.Background(), os.Args); err != nil {
		os.Exit(exitFailure)
	}
}

func loadConfig(c *cli.Context) (autoapi.Config, error) {
	cfg, err := autoapi.LoadConfig(c.String(configFlag.Name))
	if err != nil {
		return cfg, err
	}
	if c.IsSet(apiKeyFlag.Name) {
		cfg.APIKey = c.String(apiKeyFlag.Name)
	}
	if c.IsSet(productIDFlag.Name) {
		cfg.ProductID = c.Int64(productIDFlag.Name)
	}
	if c.IsSet(baseURLFlag.Name) {
		cfg.BaseURL = c.String(baseURLFlag.Name)
	}
	return cfg, cfg.Validate()
}

func newSink(c *cli.Context) (reporter.Reporter, error) {
	spreadsheetID := c.String(spreadsheetIDFlag.Name)
	if spreadsheetID == "" {
		return nil, nil
	}
	if credential := c.String(credentialFlag.Name); credential != "" {
		return reporter.NewSheetsReporterWithCredential(
			c.Context, credential, spreadsheetID)
	}
	return reporter.NewSheetsReporter(c.Context, spreadsheetID)
}

func run(c *cli.Context) error {
	ctx := c.Context

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	opts := []applause.Option{
		applause.WithConsoleAsset(!c.Bool(noConsoleAssetFlag.Name)),
	}
	if c.Bool(noConsoleFlag.Name) {
		opts = append(opts, applause.WithoutConsole())
	}
	if file := c.String(casesFlag.Name); file != "" {
		cases, err := applause.LoadCaseFile(file)
		if err != nil {
			return cli.Exit(fmt.Sprintf(
				"failed to read cases from file: %s: %s", file, err), exitConfig)
		}
		opts = append(opts, applause.WithCases(cases))
	}
	plugin, err := applause.New(cfg, opts...)
	if err != nil {
		return err
	}

	sink, err := newSink(c)
	if err != nil {
		return errors.Wrap(err, "failed to initialize reporter")
	}
	if sink != nil {
		sink.Log(ctx, fmt.Sprintf("Time: %s", time.Now()))
	}

	base := gotest.NewGotest(c.String(goFlag.Name))
	base.Run = c.String(runFlag.Name)
	base.Deadline = c.Duration(timeoutFlag.Name)
	xgt := xgotest.NewXgotest(base)

	patterns := c.Args().Slice()
	if len(patterns) == 0 {
		patterns = []string{"./**/*_test.go"}
	}
	for _, pattern := range patterns {
		if err := xgt.AddPackagesWithFilePattern(pattern); err != nil {
			return errors.Wrap(err, "failed to add packages")
		}
	}

	if err := xgt.Execute(ctx, plugin, c.Int(parallelFlag.Name), sink); err != nil {
		return errors.Wrap(err, "failed to execute")
	}

	if sink != nil {
		fmt.Fprintf(os.Stderr, "[DEBUG] flushing reporter...\n")
		if err := sink.Flush(ctx); err != nil {
			fmt.Fprintf(os.Stderr,
				"[ERROR] failed to flush reporter: %s\n", err)
		}
	}

	fmt.Printf("Overall status: %s\n", xgt.Status)
	if xgt.Status != xgotest.StatusSuccess {
		return cli.Exit("", exitFailure)
	}
	return nil
}
