package main

import (
	"flag"
	"log"
	"os"

	"github.com/divinenn/cache"
	"github.com/divinenn/mcts"
	"github.com/divinenn/nn"
	"github.com/divinenn/uci"
)

var (
	modelPath = flag.String("model_path", defaultModelPath, "model checkpoint directory")
	cacheDir  = flag.String("cache_dir", "", "evaluation cache directory (empty disables the cache)")
	dirichlet = flag.Float64("dirichlet_frac", 0, "Dirichlet noise fraction mixed into root priors")
	treeDump  = flag.String("tree_dump", "", "write each search tree as graphviz DOT to this file")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime)

	net, err := nn.Load(*modelPath)
	if err != nil {
		log.Fatalf("error loading model from %s: %+v", *modelPath, err)
	}
	log.Printf("DivineNN using network: %s", *modelPath)

	var eval mcts.Evaluator = nn.NewAdapter(net)
	if *cacheDir != "" {
		store, err := cache.Open(*cacheDir)
		if err != nil {
			log.Fatalf("error opening evaluation cache: %+v", err)
		}
		defer store.Close()
		eval = cache.NewEvaluator(eval, store)
	}

	conf := mcts.DefaultConfig()
	if *dirichlet > 0 {
		conf.DirichletAlpha = 0.3
		conf.DirichletFrac = float32(*dirichlet)
		conf.NoiseSeed = uint64(os.Getpid())
	}

	opts := []uci.Option{uci.WithSearchConfig(conf)}
	if *treeDump != "" {
		opts = append(opts, uci.WithTreeDump(*treeDump))
	}
	if useExternalEval {
		log.Printf("external evaluator: %s", externalEnginePath)
		opts = append(opts, uci.WithExternalEval(externalEnginePath))
	}

	engine := uci.New(eval, os.Stdout, opts...)
	if err := engine.Run(os.Stdin); err != nil {
		log.Fatalf("UCI loop failed: %v", err)
	}
}
