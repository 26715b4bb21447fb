package config

import (
	"github.com/tauraamui/framegrab/internal/config"
	"github.com/tauraamui/framegrab/pkg/configdef"
)

func DefaultResolver() configdef.Resolver {
	return config.DefaultResolver()
}

func DefaultCreator() configdef.Creator {
	return config.DefaultCreator()
}

func DefaultCreateResolver() configdef.CreateResolver {
	return config.DefaultCreateResolver()
}
