package output

import (
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

const (
	STRLEN = 32
	MSGLEN = 256
)

type ErrCreateGroup struct {
	Group string
	Err   error
}

func (e *ErrCreateGroup) Error() string {
	return fmt.Sprintf("error creating group %s: %v", e.Group, e.Err)
}

func (e *ErrCreateGroup) Unwrap() error {
	return e.Err
}

type ErrCreateTable struct {
	Table string
	Err   error
}

func (e *ErrCreateTable) Error() string {
	return fmt.Sprintf("error creating table %s: %v", e.Table, e.Err)
}

func (e *ErrCreateTable) Unwrap() error {
	return e.Err
}

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func convertToHdf5Message(s string) [MSGLEN]byte {
	var byteArray [MSGLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func openFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, fmt.Errorf("error creating hdf5 file %s: %w", fname, err)
	}
	return f, nil
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, &ErrCreateGroup{Group: groupName, Err: err}
	}
	return g, nil
}

// table is an extendible one dimensional dataset of compound rows.
type table struct {
	dataset *hdf5.Dataset
	rows    int
}

func createTable(group *hdf5.Group, name string, datatype interface{}, compressionLevel int) (*table, error) {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	fileSpace, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, &ErrCreateTable{Table: name, Err: err}
	}
	defer fileSpace.Close()

	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, &ErrCreateTable{Table: name, Err: err}
	}
	defer plist.Close()

	chunks := []uint{4096}
	plist.SetChunk(chunks)
	if compressionLevel > 0 {
		plist.SetDeflate(compressionLevel)
	}

	// create the memory data type
	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		return nil, &ErrCreateTable{Table: name, Err: err}
	}

	dset, err := group.CreateDatasetWith(name, dtype, fileSpace, plist)
	if err != nil {
		return nil, &ErrCreateTable{Table: name, Err: err}
	}
	return &table{dataset: dset}, nil
}

func writeEntryToTable[T any](t *table, data T) error {
	array := []T{data}
	return writeArrayToTable(t, &array)
}

func writeArrayToTable[T any](t *table, data *[]T) error {
	length := uint(len(*data))
	if length == 0 {
		return nil
	}
	dims := []uint{length}
	dataspace, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return err
	}
	defer dataspace.Close()

	// extend
	rowsInFile := uint(t.rows)
	newsize := []uint{rowsInFile + length}
	if err := t.dataset.Resize(newsize); err != nil {
		return err
	}
	filespace := t.dataset.Space()
	defer filespace.Close()

	start := []uint{rowsInFile}
	count := []uint{length}
	if err := filespace.SelectHyperslab(start, nil, count, nil); err != nil {
		return err
	}

	if err := t.dataset.WriteSubset(data, dataspace, filespace); err != nil {
		return err
	}
	t.rows += int(length)
	return nil
}

func (t *table) Close() error {
	return t.dataset.Close()
}
