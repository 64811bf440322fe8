package collect

import (
	"fmt"
	"os"
	"time"

	"github.com/shivpratapsingh111/adcollect/internal/domain/collect"
)

// Options is the flat, CLI-flag-shaped input the Link Runner's
// Initialize step turns into a RunContext (spec.md §6's exhaustive flag
// list). Kept as a separate type from RunContext so command-line
// parsing, environment variables, and a future config file can all
// populate the same struct without reaching into run state directly.
type Options struct {
	CollectionMethods []string
	MethodsPresetFile string
	Domain            string
	SearchForest      bool
	RecurseDomains    bool
	Stealth           bool
	LdapFilter        string
	DistinguishedName string
	ComputerFile      string

	OutputDirectory    string
	OutputPrefix       string
	CacheName          string
	MemCache           bool
	RebuildCache       bool
	RandomFilenames    bool
	ZipFilename        string
	NoZip              bool
	ZipPassword        string
	PrettyPrint        bool
	NoOutput           bool

	LdapUsername            string
	LdapPassword            string
	OverrideUsername        string
	DomainController        string
	LdapPort                int
	SecureLdap              bool
	DisableCertVerification bool
	SkipPortCheck           bool
	PortCheckTimeout        time.Duration
	SkipPasswordCheck       bool

	DCOnly                bool
	ExcludeDCs            bool
	Throttle              int
	Jitter                int
	Threads               int
	CollectAllProperties  bool
	RealDNSName           string

	Loop           bool
	LoopDuration   time.Duration
	LoopInterval   time.Duration
	StatusInterval time.Duration
}

// DefaultOptions mirrors SharpHound-class defaults: 10ms throttle, no
// jitter, 10 worker threads, 389/LDAP, 30s status interval.
func DefaultOptions() Options {
	return Options{
		LdapPort:         389,
		Threads:          10,
		Throttle:         10,
		PortCheckTimeout: 2 * time.Second,
		StatusInterval:   30 * time.Second,
		LoopInterval:     30 * time.Second,
	}
}

// BuildRunContext performs the Initialize link's validation and mapping
// in one step, separate from NewRunContext so it can be unit tested
// without a real context.Context import cycle concern.
func BuildRunContext(rc *collect.RunContext, o Options) error {
	if o.Domain == "" && o.DistinguishedName == "" {
		return fmt.Errorf("initialize: Domain or DistinguishedName is required")
	}
	if o.SearchForest && o.RecurseDomains {
		return fmt.Errorf("initialize: SearchForest and RecurseDomains are mutually exclusive")
	}
	if o.Stealth && o.ComputerFile != "" {
		return fmt.Errorf("initialize: Stealth and ComputerFile are mutually exclusive producer selections")
	}

	creds, err := collect.NewExplicitCredentials(o.LdapUsername, o.LdapPassword)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	if !o.NoOutput {
		if err := checkOutputDirectoryWritable(o.OutputDirectory); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
	}

	rc.DomainName = o.Domain
	rc.SearchBase = o.DistinguishedName
	rc.LdapFilter = o.LdapFilter

	rc.OutputDirectory = o.OutputDirectory
	rc.OutputPrefix = o.OutputPrefix
	rc.ZipFilename = o.ZipFilename
	rc.ZipPassword = o.ZipPassword
	rc.RandomizeFilenames = o.RandomFilenames
	rc.NoZip = o.NoZip
	rc.NoOutput = o.NoOutput
	rc.PrettyPrint = o.PrettyPrint

	rc.ComputerFilePath = o.ComputerFile
	rc.Stealth = o.Stealth

	methodNames := o.CollectionMethods
	if o.MethodsPresetFile != "" {
		preset, err := LoadMethodPreset(o.MethodsPresetFile)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		methodNames = preset.Methods
	}
	rc.CollectionMethods = collect.ParseMethodNames(methodNames)
	rc.DCOnly = o.DCOnly
	rc.ExcludeDomainControllers = o.ExcludeDCs
	rc.CollectAllProperties = o.CollectAllProperties

	rc.SearchForest = o.SearchForest
	rc.RecurseDomains = o.RecurseDomains

	rc.MemCache = o.MemCache
	rc.InvalidateCache = o.RebuildCache
	rc.CacheFilePath = o.CacheName

	rc.Jitter = o.Jitter
	rc.ThrottleMs = o.Throttle
	rc.StatusInterval = o.StatusInterval
	rc.Loop = o.Loop

	// A Loop run with no explicit duration or interval normalizes to
	// SharpHound-class defaults rather than firing the loop timer near
	// instantly: callers other than the CLI (tests, a future wrapper)
	// don't get flag.DurationVar's defaults for free.
	rc.LoopDuration = o.LoopDuration
	if o.Loop && rc.LoopDuration == 0 {
		rc.LoopDuration = 2 * time.Hour
	}
	rc.LoopInterval = o.LoopInterval
	if o.Loop && rc.LoopInterval == 0 {
		rc.LoopInterval = 30 * time.Second
	}

	rc.Credentials = creds
	rc.DomainController = o.DomainController
	rc.LdapPort = o.LdapPort
	rc.SecureLdap = o.SecureLdap
	rc.DisableCertVerification = o.DisableCertVerification
	rc.SkipPortCheck = o.SkipPortCheck
	rc.PortCheckTimeout = o.PortCheckTimeout
	rc.SkipPasswordCheck = o.SkipPasswordCheck

	rc.Threads = o.Threads
	if rc.Threads <= 0 {
		rc.Threads = 10
	}

	rc.RealDNSName = o.RealDNSName

	return nil
}

// checkOutputDirectoryWritable creates and deletes a probe file in dir so
// a bad -output-directory fails fast as a Configuration error, rather
// than surfacing deep inside the first Writer.create call after
// discovery and collection have already run.
func checkOutputDirectoryWritable(dir string) error {
	probe, err := os.CreateTemp(dir, ".adcollect-probe-*")
	if err != nil {
		return fmt.Errorf("output directory %q is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("output directory %q is not writable: %w", dir, err)
	}
	return nil
}
