package config

import "errors"

var (
	// ErrNoEntries indicates the configuration declares no entry points
	ErrNoEntries = errors.New("no entry points declared")
	// ErrDuplicateEntry indicates two entry points share a name
	ErrDuplicateEntry = errors.New("duplicate entry point name")
	// ErrEmptyEntryName indicates an entry point has an empty name
	ErrEmptyEntryName = errors.New("entry point name is empty")
	// ErrNoSources indicates an entry point lists no source modules
	ErrNoSources = errors.New("entry point has no source modules")
	// ErrEmptyOutputDir indicates the output directory is empty
	ErrEmptyOutputDir = errors.New("output directory is empty")
	// ErrEmptyFilename indicates the output filename template is empty
	ErrEmptyFilename = errors.New("output filename template is empty")
	// ErrDuplicateRule indicates two rules share a name
	ErrDuplicateRule = errors.New("duplicate rule name")
	// ErrRuleNoTest indicates a rule has no test pattern
	ErrRuleNoTest = errors.New("rule has no test pattern")
	// ErrRuleNoTransforms indicates a rule lists no transforms
	ErrRuleNoTransforms = errors.New("rule has no transforms")
	// ErrInvalidVerbosity indicates an unrecognised stats verbosity
	ErrInvalidVerbosity = errors.New("invalid stats verbosity")
	// ErrAssetBuildHash indicates the asset template uses [hash], which is only
	// known once every output has been built
	ErrAssetBuildHash = errors.New("asset filename template cannot use [hash]")
	// ErrUnsupportedFormat indicates the config file extension is not recognised
	ErrUnsupportedFormat = errors.New("unsupported config file format")
)
