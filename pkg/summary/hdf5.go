package summary

import (
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

const STRLEN = 20

type eventHDF5 struct {
	run        int32
	subrun     int32
	evt_number int32
}

type runInfoHDF5 struct {
	run_number int32
}

type eventSummaryHDF5 struct {
	evt_number   int32
	nhits        [4]int32
	hit_energy   [3]float64
	ide_energy   [3]float64
	ratio        [3]float64
	total_ratio  float64
	maxe_pdg     int32
	maxe_energy  float64
	maxe_theta   float64
	maxe_phi     float64
	species_mask uint8
}

type resultsHDF5 struct {
	species [STRLEN]byte
	all     float64
	plane0  float64
	plane1  float64
	plane2  float64
}

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func openFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, fmt.Errorf("error creating %s: %w", fname, err)
	}
	return f, nil
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, &ErrCreateGroup{GroupName: groupName, Err: err}
	}
	return g, nil
}

// createTable creates an extendible, chunked and deflate-compressed table
// of compound rows shaped like datatype.
func createTable(group *hdf5.Group, name string, datatype interface{}, compression int) (*hdf5.Dataset, error) {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	fileSpace, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer fileSpace.Close()

	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plist.Close()

	chunks := []uint{1024}
	if err := plist.SetChunk(chunks); err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	if compression > 0 {
		if err := plist.SetDeflate(compression); err != nil {
			return nil, &ErrCreateTable{TableName: name, Err: err}
		}
	}

	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	dset, err := group.CreateDatasetWith(name, dtype, fileSpace, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dset, nil
}

func writeEntryToTable[T any](dataset *hdf5.Dataset, data T, rowCounter int) error {
	array := []T{data}
	return writeArrayToTable(dataset, &array, rowCounter)
}

func writeArrayToTable[T any](dataset *hdf5.Dataset, data *[]T, rowCounter int) error {
	length := uint(len(*data))
	dims := []uint{length}
	dataspace, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return fmt.Errorf("error creating memory dataspace: %w", err)
	}
	defer dataspace.Close()

	rowsInFile := uint(rowCounter)
	newsize := []uint{rowsInFile + length}
	if err := dataset.Resize(newsize); err != nil {
		return fmt.Errorf("error extending table: %w", err)
	}
	filespace := dataset.Space()
	defer filespace.Close()

	start := []uint{rowsInFile}
	count := []uint{length}
	if err := filespace.SelectHyperslab(start, nil, count, nil); err != nil {
		return fmt.Errorf("error selecting rows: %w", err)
	}
	if err := dataset.WriteSubset(data, dataspace, filespace); err != nil {
		return fmt.Errorf("error writing rows: %w", err)
	}
	return nil
}
