// Package config loads the pipeline configuration.
//
// Layers are applied in order, later layers winning:
//
//  1. embedded defaults (embedded/defaults.toml)
//  2. the project file: sfcbuild.toml, .sfcbuild.toml, sfcbuild.yaml or sfcbuild.yml
//  3. SFCBUILD_* values from .env and .env.local
//  4. SFCBUILD_* process environment variables
//  5. command line overrides
//
// Environment keys drop the prefix, are lower-cased and use a double
// underscore for nesting: SFCBUILD_TARGET__ES=es2020 sets target.es.
//
// Maps merge key by key; lists such as rules and plugins replace the
// previous layer wholesale.
package config
