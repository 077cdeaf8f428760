package domain

// VerificationReport classifies every file of one installed package against
// its recorded per-file checksum manifest.
type VerificationReport struct {
	Package string

	// HasChecksums is false for entries locked before checksum tracking
	// existed; such packages cannot be verified and report no files.
	HasChecksums bool

	// Intact lists files whose content matches the recorded digest.
	Intact []string

	// Modified lists files present on disk with diverging content.
	Modified []string

	// Missing lists recorded files absent from disk.
	Missing []string

	// Untracked lists installed files not present in the recorded manifest.
	Untracked []string
}

// IsClean reports whether the package shows no drift: nothing modified,
// missing, or untracked.
func (r VerificationReport) IsClean() bool {
	return len(r.Modified) == 0 && len(r.Missing) == 0 && len(r.Untracked) == 0
}

// AggregateReport is the result of verifying every locked package.
type AggregateReport struct {
	Reports []VerificationReport

	// Clean and Dirty count verified packages by outcome. Packages without
	// checksum tracking count as neither.
	Clean int
	Dirty int

	// Skipped counts packages without checksum tracking.
	Skipped int
}
