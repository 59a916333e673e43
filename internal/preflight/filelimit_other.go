//go:build !unix

package preflight

// CheckFileDescriptors has nothing to check outside Unix.
func (c *Checker) CheckFileDescriptors() CheckResult {
	return CheckResult{
		Name:     "file_descriptors",
		Status:   StatusPass,
		Message:  "not applicable",
		Required: true,
	}
}
