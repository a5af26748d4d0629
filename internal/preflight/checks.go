package preflight

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sys/unix"
)

// CheckSourceDir verifies the source folder exists and is readable.
func CheckSourceDir(path string) Result {
	const name = "Source folder"
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckTargetDir creates the target folder if missing and verifies it is
// writable.
func CheckTargetDir(path string) Result {
	const name = "Target folder"
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: create: %v)", path, err)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckTemplate verifies a report template exists and parses as a workbook.
func CheckTemplate(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a valid workbook: %v)", path, err)}
	}
	sheets := len(f.GetSheetList())
	_ = f.Close()
	if sheets == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: workbook has no sheets)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d sheets)", path, sheets)}
}

// CheckFreeSpace reports how much space the target volume has left. Running
// low is a warning, not a hard failure.
func CheckFreeSpace(path string, minGiB int) Result {
	const name = "Free space"
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Warning: true, Detail: fmt.Sprintf("%s (statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	freeGiB := float64(free) / (1 << 30)
	if minGiB > 0 && free < uint64(minGiB)*(1<<30) {
		return Result{Name: name, Warning: true,
			Detail: fmt.Sprintf("%.1f GiB free on %s, below the %d GiB threshold", freeGiB, path, minGiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%.1f GiB free on %s", freeGiB, path)}
}
