package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/applause/applause-gotest/pkg/applause"
	"github.com/applause/applause-gotest/pkg/autoapi"
)

var config = flag.String("config", "", "YAML config file")
var name = flag.String("name", "TestDebugAutoAPI", "test case name to report")
var fail = flag.Bool("fail", false, "report the test case as failed")

func main() {
	flag.Parse()
	ctx := context.Background()

	cfg, err := autoapi.LoadConfig(*config)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %s", err))
	}
	r, err := autoapi.NewReporter(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to create reporter: %s", err))
	}
	p := applause.NewWithReporter(r)

	if err := p.StartSession(ctx, []string{*name}); err != nil {
		panic(fmt.Sprintf("failed to start session: %s", err))
	}
	fmt.Fprintf(os.Stderr, "[DEBUG] started run %d\n", r.RunID())
	defer func() {
		if err := p.EndSession(ctx); err != nil {
			panic(fmt.Sprintf("failed to end session: %s", err))
		}
		fmt.Fprintf(os.Stderr, "[DEBUG] run ended\n")
	}()

	result, err := p.StartTest(ctx, applause.TestCase{ID: *name, Name: *name})
	if err != nil {
		panic(fmt.Sprintf("failed to start test case: %s", err))
	}
	resultID, _ := r.ResultID(*name)
	fmt.Fprintf(os.Stderr, "[DEBUG] created result %d\n", resultID)
	for i := 0; i < 3; i++ {
		result.Logf("%s] debug log %d", time.Now().String(), i)
	}

	outcome := applause.Outcome{}
	if *fail {
		outcome = applause.Outcome{
			Failed:       true,
			CrashMessage: "debug failure",
			LongText:     "debug failure requested with -fail",
		}
	}
	if err := p.FinishTest(ctx, result, outcome); err != nil {
		panic(fmt.Sprintf("failed to submit test case: %s", err))
	}
}
