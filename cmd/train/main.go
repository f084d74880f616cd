package main

import (
	"mlops-pipeline/cmd"
	"mlops-pipeline/internal/pipeline"
)

func main() {
	cmd.RunStage(pipeline.TrainStageName)
}
