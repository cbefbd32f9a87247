package cmd

import (
	"flag"
	"strings"

	"github.com/etnz/lotbook"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// flagPredictors complete flag values by flag name.
var flagPredictors = map[string]complete.Predictor{
	"config": predict.Files("*.yaml"),
	"type": predict.Set{
		string(lotbook.Bank), string(lotbook.Broker), string(lotbook.Exchange), string(lotbook.Demat),
		string(lotbook.Commodity), string(lotbook.Crypto), string(lotbook.Locker), string(lotbook.Deposit),
		string(lotbook.VirtualSub),
	},
	"exchange": predict.Set{"NSE", "BSE"},
}

// argPredictors complete positional arguments by command name.
var argPredictors = map[string]complete.Predictor{
	"import": predict.Files("*.json"),
}

// Completion returns the shell completion of the top level flags and of the
// commands registered in c.
func Completion(c *subcommands.Commander) *complete.Command {
	root := &complete.Command{Sub: map[string]*complete.Command{}, Flags: map[string]complete.Predictor{}}
	flag.CommandLine.VisitAll(func(f *flag.Flag) { root.Flags[f.Name] = predictFlag(f) })

	c.VisitCommands(func(_ *subcommands.CommandGroup, cmd subcommands.Command) {
		fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
		cmd.SetFlags(fs)
		sub := &complete.Command{Flags: map[string]complete.Predictor{}, Args: argPredictors[cmd.Name()]}
		fs.VisitAll(func(f *flag.Flag) { sub.Flags[f.Name] = predictFlag(f) })
		root.Sub[cmd.Name()] = sub
	})
	return root
}

func predictFlag(f *flag.Flag) complete.Predictor {
	if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
		return predict.Nothing
	}
	if p, ok := flagPredictors[f.Name]; ok {
		return p
	}
	if strings.Contains(f.Usage, "date") {
		return predict.Nothing
	}
	return predict.Something
}
