//go:build externaleval

package main

const (
	defaultModelPath = "divine-model"

	useExternalEval    = true
	externalEnginePath = "stockfish"
)
