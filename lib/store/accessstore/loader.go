package accessstore

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	ServiceReadFile = "serviceRead.json"
	CallerReadFile  = "callerRead.json"
)

// LoadDir builds a Policy from serviceRead.json and callerRead.json in dir.
// A missing document leaves that access mode unconfigured.
func LoadDir(dir string) (*Policy, error) {
	cleaned := strings.TrimSpace(dir)
	if cleaned == "" {
		return nil, errors.New("accessstore: access directory is not set")
	}
	serviceRead, err := readAllowedDbs(filepath.Join(cleaned, ServiceReadFile))
	if err != nil {
		return nil, err
	}
	callerRead, err := readAllowedDbs(filepath.Join(cleaned, CallerReadFile))
	if err != nil {
		return nil, err
	}
	return New(Config{ServiceRead: serviceRead, CallerRead: callerRead})
}

func readAllowedDbs(path string) (AllowedDbs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "accessstore: read %s", path)
	}
	var allowed AllowedDbs
	if err := json.Unmarshal(data, &allowed); err != nil {
		return nil, errors.Wrapf(err, "accessstore: parse %s", path)
	}
	if allowed == nil {
		allowed = AllowedDbs{}
	}
	return allowed, nil
}
