package output

import (
	"errors"
	"fmt"

	decoder "github.com/a2mainz/acqu_decoder/pkg"
	"github.com/a2mainz/acqu_decoder/pkg/reconstruct"
	"github.com/google/uuid"
	hdf5 "github.com/jmbenlloch/go-hdf5"
)

type RunInfoHDF5 struct {
	run_number    int32
	timestamp     int64
	record_length int32
	session       [STRLEN]byte
	description   [MSGLEN]byte
	run_note      [MSGLEN]byte
}

type ModuleHDF5 struct {
	identifier        [STRLEN]byte
	index             int32
	bits              int32
	first_raw_channel int32
	n_raw_channels    int32
	scaler            int32
}

type EventDataHDF5 struct {
	evt_number   uint32
	timestamp    int64
	n_candidates int32
	n_clusters   int32
	n_unmatched  int32
}

type CandidateHDF5 struct {
	evt_number     uint32
	detector       uint32
	calo_energy    float64
	veto_energy    float64
	theta          float64
	phi            float64
	time           float64
	cluster_size   int32
	tracker_energy float64
}

type ClusterHDF5 struct {
	evt_number   uint32
	detector     uint32
	energy       float64
	time         float64
	x            float64
	y            float64
	z            float64
	central      uint32
	short_energy float64
	n_hits       int32
	flags        int32
	candidate    int32
}

type TaggerHitHDF5 struct {
	evt_number uint32
	channel    uint32
	time       float64
	energy     float64
}

type SlowControlHDF5 struct {
	evt_number uint32
	sc_type    int32
	validity   int32
	timestamp  int64
	name       [STRLEN]byte
	key        uint32
	value      float64
	str_value  [STRLEN]byte
}

type DAQErrorHDF5 struct {
	evt_number   uint32
	module_id    int32
	module_index int32
	error_code   int32
	module_name  [STRLEN]byte
}

type MessageHDF5 struct {
	evt_number uint32
	level      int32
	text       [MSGLEN]byte
}

// Writer stores reconstructed events in an HDF5 file with the groups Run,
// Reconstructed, SlowControl and Unpacker.
type Writer struct {
	File               *hdf5.File
	Filename           string
	SessionID          string
	RunGroup           *hdf5.Group
	ReconstructedGroup *hdf5.Group
	SlowControlGroup   *hdf5.Group
	UnpackerGroup      *hdf5.Group
	RunInfoTable       *table
	ModulesTable       *table
	EventTable         *table
	CandidatesTable    *table
	ClustersTable      *table
	TaggerTable        *table
	SlowControlTable   *table
	DAQErrorsTable     *table
	MessagesTable      *table
	EvtCounter         int
}

func NewWriter(filename string, header decoder.HeaderInfo, timestamp int64, compressionLevel int) (*Writer, error) {
	// Set string size for HDF5
	hdf5.SetStringLength(STRLEN)

	writer := &Writer{Filename: filename, SessionID: uuid.New().String()}
	var err error
	if writer.File, err = openFile(filename); err != nil {
		return nil, err
	}

	groups := []struct {
		dst  **hdf5.Group
		name string
	}{
		{&writer.RunGroup, "Run"},
		{&writer.ReconstructedGroup, "Reconstructed"},
		{&writer.SlowControlGroup, "SlowControl"},
		{&writer.UnpackerGroup, "Unpacker"},
	}
	for _, g := range groups {
		if *g.dst, err = createGroup(writer.File, g.name); err != nil {
			writer.Close()
			return nil, err
		}
	}

	tables := []struct {
		dst      **table
		group    *hdf5.Group
		name     string
		datatype interface{}
	}{
		{&writer.RunInfoTable, writer.RunGroup, "runInfo", RunInfoHDF5{}},
		{&writer.ModulesTable, writer.RunGroup, "modules", ModuleHDF5{}},
		{&writer.EventTable, writer.RunGroup, "events", EventDataHDF5{}},
		{&writer.CandidatesTable, writer.ReconstructedGroup, "candidates", CandidateHDF5{}},
		{&writer.ClustersTable, writer.ReconstructedGroup, "clusters", ClusterHDF5{}},
		{&writer.TaggerTable, writer.ReconstructedGroup, "taggerHits", TaggerHitHDF5{}},
		{&writer.SlowControlTable, writer.SlowControlGroup, "values", SlowControlHDF5{}},
		{&writer.DAQErrorsTable, writer.UnpackerGroup, "daqErrors", DAQErrorHDF5{}},
		{&writer.MessagesTable, writer.UnpackerGroup, "messages", MessageHDF5{}},
	}
	for _, t := range tables {
		if *t.dst, err = createTable(t.group, t.name, t.datatype, compressionLevel); err != nil {
			writer.Close()
			return nil, err
		}
	}

	if err := writer.writeRunInfo(header, timestamp); err != nil {
		writer.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) writeRunInfo(header decoder.HeaderInfo, timestamp int64) error {
	runInfo := RunInfoHDF5{
		run_number:    int32(header.RunNumber),
		timestamp:     timestamp,
		record_length: int32(header.RecordLength),
		session:       convertToHdf5String(w.SessionID),
		description:   convertToHdf5Message(header.Description),
		run_note:      convertToHdf5Message(header.RunNote),
	}
	if err := writeEntryToTable(w.RunInfoTable, runInfo); err != nil {
		return fmt.Errorf("error writing run info: %w", err)
	}

	// The array MUST be allocated at creation, appending element by
	// element to a nil slice does not work with HDF5
	modules := make([]ModuleHDF5, 0, len(header.ADCModules)+len(header.ScalerModules))
	for i, list := range [][]decoder.HardwareModule{header.ADCModules, header.ScalerModules} {
		for _, m := range list {
			modules = append(modules, ModuleHDF5{
				identifier:        convertToHdf5String(m.Identifier),
				index:             m.Index,
				bits:              m.Bits,
				first_raw_channel: m.FirstRawChannel,
				n_raw_channels:    m.NRawChannels,
				scaler:            int32(i),
			})
		}
	}
	return writeArrayToTable(w.ModulesTable, &modules)
}

// candidateIndex maps every cluster to the first candidate containing it. A
// PID cluster shared by several CB|PID candidates points to the first one.
func candidateIndex(event *reconstruct.ReconstructedEvent) map[*reconstruct.Cluster]int32 {
	index := make(map[*reconstruct.Cluster]int32)
	for i, c := range event.Candidates {
		for _, cluster := range c.Clusters {
			if _, ok := index[cluster]; !ok {
				index[cluster] = int32(i)
			}
		}
	}
	return index
}

func (w *Writer) WriteEvent(event *reconstruct.ReconstructedEvent) error {
	evt := event.ID.Lower
	eventData := EventDataHDF5{
		evt_number:   evt,
		timestamp:    event.ID.Timestamp,
		n_candidates: int32(len(event.Candidates)),
		n_clusters:   int32(len(event.Clusters)),
		n_unmatched:  int32(event.Unmatched()),
	}
	if err := writeEntryToTable(w.EventTable, eventData); err != nil {
		return fmt.Errorf("error writing event %v: %w", event.ID, err)
	}

	candidates := make([]CandidateHDF5, len(event.Candidates))
	for i, c := range event.Candidates {
		candidates[i] = CandidateHDF5{
			evt_number:     evt,
			detector:       uint32(c.Detector),
			calo_energy:    c.CaloEnergy,
			veto_energy:    c.VetoEnergy,
			theta:          c.Theta,
			phi:            c.Phi,
			time:           c.Time,
			cluster_size:   int32(c.ClusterSize),
			tracker_energy: c.TrackerEnergy,
		}
	}

	index := candidateIndex(event)
	clusters := make([]ClusterHDF5, len(event.Clusters))
	for i, c := range event.Clusters {
		candidate, ok := index[c]
		if !ok {
			candidate = -1
		}
		clusters[i] = ClusterHDF5{
			evt_number:   evt,
			detector:     uint32(c.DetectorType),
			energy:       c.Energy,
			time:         c.Time,
			x:            c.Position.X,
			y:            c.Position.Y,
			z:            c.Position.Z,
			central:      c.CentralElement,
			short_energy: c.ShortEnergy,
			n_hits:       int32(len(c.Hits)),
			flags:        int32(c.Flags),
			candidate:    candidate,
		}
	}

	taggerHits := make([]TaggerHitHDF5, len(event.TaggerHits))
	for i, h := range event.TaggerHits {
		taggerHits[i] = TaggerHitHDF5{evt_number: evt, channel: h.Channel, time: h.Time, energy: h.Energy}
	}

	var slowControls []SlowControlHDF5
	for _, sc := range event.SlowControls {
		row := SlowControlHDF5{
			evt_number: evt,
			sc_type:    int32(sc.Type),
			validity:   int32(sc.Validity),
			timestamp:  sc.Timestamp,
			name:       convertToHdf5String(sc.Name),
		}
		for _, kv := range sc.PayloadInt {
			row.key, row.value, row.str_value = kv.Key, float64(kv.Value), [STRLEN]byte{}
			slowControls = append(slowControls, row)
		}
		for _, kv := range sc.PayloadFloat {
			row.key, row.value, row.str_value = kv.Key, kv.Value, [STRLEN]byte{}
			slowControls = append(slowControls, row)
		}
		for _, kv := range sc.PayloadString {
			row.key, row.value, row.str_value = kv.Key, 0, convertToHdf5String(kv.Value)
			slowControls = append(slowControls, row)
		}
	}

	daqErrors := make([]DAQErrorHDF5, len(event.DAQErrors))
	for i, e := range event.DAQErrors {
		daqErrors[i] = DAQErrorHDF5{
			evt_number:   evt,
			module_id:    e.ModuleID,
			module_index: e.ModuleIndex,
			error_code:   e.ErrorCode,
			module_name:  convertToHdf5String(e.ModuleName),
		}
	}

	messages := make([]MessageHDF5, len(event.Messages))
	for i, m := range event.Messages {
		messages[i] = MessageHDF5{evt_number: evt, level: int32(m.Level), text: convertToHdf5Message(m.Formatted())}
	}

	err := errors.Join(
		writeArrayToTable(w.CandidatesTable, &candidates),
		writeArrayToTable(w.ClustersTable, &clusters),
		writeArrayToTable(w.TaggerTable, &taggerHits),
		writeArrayToTable(w.SlowControlTable, &slowControls),
		writeArrayToTable(w.DAQErrorsTable, &daqErrors),
		writeArrayToTable(w.MessagesTable, &messages),
	)
	if err != nil {
		return fmt.Errorf("error writing event %v: %w", event.ID, err)
	}
	w.EvtCounter++
	return nil
}

func (w *Writer) Close() error {
	var errs []error
	for _, t := range []*table{
		w.RunInfoTable, w.ModulesTable, w.EventTable, w.CandidatesTable, w.ClustersTable,
		w.TaggerTable, w.SlowControlTable, w.DAQErrorsTable, w.MessagesTable,
	} {
		if t != nil {
			errs = append(errs, t.Close())
		}
	}
	for _, g := range []*hdf5.Group{w.RunGroup, w.ReconstructedGroup, w.SlowControlGroup, w.UnpackerGroup} {
		if g != nil {
			errs = append(errs, g.Close())
		}
	}
	if w.File != nil {
		errs = append(errs, w.File.Close())
	}
	return errors.Join(errs...)
}
