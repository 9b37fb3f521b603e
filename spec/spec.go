// Package spec discovers and parses job description files.
//
// A job description is an sbatch script: a shell script whose #SBATCH
// directive lines carry scheduler metadata. The script body is opaque to
// slurmherd and handed to the scheduler as-is; only the directives are
// parsed, so the run report can name jobs and partitions without asking
// the scheduler.
package spec

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hollandm/slurmherd/errors"
)

// JobSpec identifies one unit of work to submit. Immutable once loaded.
type JobSpec struct {
	Name      string `json:"name"`                // Unique within a batch; --job-name or the filename stem
	Path      string `json:"path"`                // Resource file submitted to the scheduler
	Partition string `json:"partition,omitempty"` // --partition / -p
	Account   string `json:"account,omitempty"`   // --account / -A
	TimeLimit string `json:"time_limit,omitempty"`
	Output    string `json:"output,omitempty"` // --output / -o log destination
	Nodes     int    `json:"nodes,omitempty"`  // --nodes / -N
	CPUs      int    `json:"cpus,omitempty"`   // --cpus-per-task / -c
	GPUs      int    `json:"gpus,omitempty"`   // --gres=gpu:N count
}

const directivePrefix = "#SBATCH"

// Parse reads an sbatch script and extracts its directive metadata.
// Returns ErrParse for unreadable, empty, or malformed files.
func Parse(path string) (JobSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return JobSpec{}, errors.WrapParse(err, path)
	}
	defer f.Close()

	js := JobSpec{
		Name: stem(path),
		Path: path,
	}

	sawContent := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			sawContent = true
		}
		if !strings.HasPrefix(line, directivePrefix) {
			continue
		}

		directive := strings.TrimSpace(strings.TrimPrefix(line, directivePrefix))
		if directive == "" {
			return JobSpec{}, errors.Wrap(errors.ErrParse, path+": empty #SBATCH directive")
		}
		if err := js.applyDirective(directive); err != nil {
			return JobSpec{}, errors.WrapParse(err, path)
		}
	}
	if err := scanner.Err(); err != nil {
		return JobSpec{}, errors.WrapParse(err, path)
	}
	if !sawContent {
		return JobSpec{}, errors.Wrap(errors.ErrParse, path+": empty file")
	}

	return js, nil
}

// applyDirective interprets a single #SBATCH option. Directives beyond
// the recognized metadata set are valid and ignored (the scheduler
// interprets the full script itself).
func (js *JobSpec) applyDirective(directive string) error {
	flag, value := splitDirective(directive)
	if flag == "" {
		return errors.Newf("malformed directive %q", directive)
	}

	switch flag {
	case "--job-name", "-J":
		if value == "" {
			return errors.Newf("directive %s requires a value", flag)
		}
		js.Name = value
	case "--partition", "-p":
		js.Partition = value
	case "--account", "-A":
		js.Account = value
	case "--time", "-t":
		js.TimeLimit = value
	case "--output", "-o":
		js.Output = value
	case "--nodes", "-N":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Newf("directive %s has non-numeric value %q", flag, value)
		}
		js.Nodes = n
	case "--cpus-per-task", "-c":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Newf("directive %s has non-numeric value %q", flag, value)
		}
		js.CPUs = n
	case "--gres":
		// Only the gpu resource is of interest; e.g. "gpu:2" or "gpu:a100:4"
		if n, ok := gpuCount(value); ok {
			js.GPUs = n
		}
	}
	return nil
}

// gpuCount extracts the count from a --gres gpu specification
func gpuCount(value string) (int, bool) {
	parts := strings.Split(value, ":")
	if len(parts) < 2 || parts[0] != "gpu" {
		return 0, false
	}
	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// splitDirective separates "--flag=value", "--flag value" and "-f value"
// forms into flag and value.
func splitDirective(directive string) (flag, value string) {
	if !strings.HasPrefix(directive, "-") {
		return "", ""
	}
	if eq := strings.IndexByte(directive, '='); eq >= 0 {
		return directive[:eq], strings.TrimSpace(directive[eq+1:])
	}
	fields := strings.Fields(directive)
	if len(fields) == 0 {
		return "", ""
	}
	flag = fields[0]
	if len(fields) > 1 {
		value = strings.Join(fields[1:], " ")
	}
	return flag, value
}

// stem returns the filename without directory or extension
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
