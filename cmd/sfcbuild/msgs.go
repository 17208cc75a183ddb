package sfcbuild

import (
	_ "embed"
	"strings"
)

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort       = "Build single-file component applications into static bundles"
	MsgBuildShort      = "Build the project into the output directory"
	MsgPlanShort       = "Describe what a build would emit without writing anything"
	MsgPlanLong        = "Plan runs every build step except writing, and lists each file of the bundle with its origin and size."
	MsgVerifyShort     = "Check an emitted bundle against its manifest and asset sources"
	MsgServeShort      = "Build, serve and rebuild on change"
	MsgPublishShort    = "Upload a verified bundle to object storage"
	MsgConfigShort     = "Inspect and create configuration files"
	MsgConfigInitShort = "Write a project configuration file from a preset"
	MsgConfigShowShort = "Print the resolved configuration"
	MsgVersionShort    = "Print version information"
	MsgCompletionShort = "Generate shell completion script"

	// Status messages
	MsgWatching      = "Watching %d directories for changes"
	MsgRebuilt       = "Rebuilt after changes to %s"
	MsgServing       = "Serving %s on http://%s"
	MsgConfigWritten = "Wrote %s"
	MsgVersionFormat = "sfcbuild version %s\n  commit: %s\n  built:  %s\n"

	// Flag descriptions
	MsgFlagVerbose     = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagRoot        = "Project root (default is the working directory)"
	MsgFlagConfig      = "Configuration file (default is sfcbuild.toml in the project root)"
	MsgFlagFormat      = "Output format: auto, terminal, text or json"
	MsgFlagOut         = "Output directory, relative to the project root"
	MsgFlagPublicPath  = "Relative prefix of every reference inside the bundle"
	MsgFlagExecutor    = "How outputs are written: synthfs or direct"
	MsgFlagMode        = "Build mode: production or development"
	MsgFlagWatch       = "Rebuild when sources change"
	MsgFlagAddr        = "Address to listen on"
	MsgFlagPrefix      = "Key prefix, overriding publish.prefix"
	MsgFlagConcurrency = "Parallel uploads"
	MsgFlagPreset      = "Preset to start from"
	MsgFlagConfigFmt   = "File format: toml or yaml"
	MsgFlagForce       = "Overwrite an existing configuration file"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/build-long.txt
	msgBuildLongRaw string
	MsgBuildLong    = strings.TrimSpace(msgBuildLongRaw)

	//go:embed msgs/build-example.txt
	msgBuildExampleRaw string
	MsgBuildExample    = strings.TrimRight(msgBuildExampleRaw, "\n")

	//go:embed msgs/serve-long.txt
	msgServeLongRaw string
	MsgServeLong    = strings.TrimSpace(msgServeLongRaw)

	//go:embed msgs/publish-long.txt
	msgPublishLongRaw string
	MsgPublishLong    = strings.TrimSpace(msgPublishLongRaw)
)
