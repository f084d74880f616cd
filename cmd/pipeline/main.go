package main

import (
	"context"
	"flag"
	"log"
	"mlops-pipeline/cmd"
)

func main() {
	log.Println("Starting pipeline...")

	from := flag.String("from", "", "stage to start from (data, train, register or deploy)")
	cmd.LoadEnvFile()

	ctx := context.Background()

	p := cmd.InitPipeline(ctx)

	stages, err := p.Stages(*from)
	if err != nil {
		p.Close()
		log.Fatalf("error creating stages: %v", err)
	}

	err = p.Runner.RunAll(ctx, stages)
	p.Close()
	cmd.ExitOnError(err)
}
