package main

// Provider blank imports — each import activates a self-registering
// backend adapter. Add new provider kinds here as they are implemented.

import (
	_ "github.com/catalpa-cl/espresso/internal/adapter/azureai"
	_ "github.com/catalpa-cl/espresso/internal/adapter/azureopenai"
	_ "github.com/catalpa-cl/espresso/internal/adapter/ollama"
)
