package devinfo

import (
	"io/ioutil"
	"path"
	"path/filepath"
)

// Source gives access to the files of a device database, a *packr.Box satisfies it.
type Source interface {
	Find(name string) ([]byte, error)
}

// DirSource reads the database files below a directory
type DirSource string

func (d DirSource) Find(name string) ([]byte, error) {
	return ioutil.ReadFile(filepath.Join(string(d), filepath.FromSlash(name)))
}

// SubSource reads the files of a database below Dir in a Source holding several
// devices, e.g. a box of the whole devices directory
type SubSource struct {
	Source
	Dir string
}

func (s SubSource) Find(name string) ([]byte, error) {
	return s.Source.Find(path.Join(s.Dir, name))
}
