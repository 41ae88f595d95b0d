package mesh

// Communicator performs reductions across the processes sharing a
// distributed mesh. All controller-level reductions go through it.
type Communicator interface {
	Rank() int
	Size() int
	SumAll(v float64) float64
	MinAll(v float64) float64
	MaxAll(v float64) float64
}

// SerialCommunicator is the single-process Communicator.
type SerialCommunicator struct{}

func (SerialCommunicator) Rank() int                { return 0 }
func (SerialCommunicator) Size() int                { return 1 }
func (SerialCommunicator) SumAll(v float64) float64 { return v }
func (SerialCommunicator) MinAll(v float64) float64 { return v }
func (SerialCommunicator) MaxAll(v float64) float64 { return v }

// Communicator returns the mesh communicator, defaulting to serial.
func (m *Mesh) Communicator() Communicator {
	if m.Comm == nil {
		return SerialCommunicator{}
	}
	return m.Comm
}
