// Command initmodel writes a freshly initialized network checkpoint, for
// bring-up and testing against the engine before a trained model exists.
package main

import (
	"flag"
	"log"

	"github.com/divinenn/nn"
)

var modelPath = flag.String("model_path", "divine-model", "checkpoint directory to create")

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime)

	net, err := nn.New(nn.DefaultConfig())
	if err != nil {
		log.Fatalf("error building network: %+v", err)
	}
	if err := net.Save(*modelPath); err != nil {
		log.Fatalf("error saving model: %+v", err)
	}
	log.Printf("wrote checkpoint to %s", *modelPath)
}
