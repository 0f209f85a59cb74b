//go:build mpi

// Package transport, under the mpi build tag, binds stencil.Communicator
// to a real MPI implementation via cgo, the way other_examples'
// cogentcore-core__mpi.go binds Go to an MPI_Comm handle. CGOMPI calls
// MPI_Isend/MPI_Irecv/MPI_Wait/MPI_Bcast and MPI_Comm_rank/MPI_Comm_size
// directly; they need a real MPI dev environment (mpi.h, libmpi) that this
// module cannot assume is present, so this file is built only with the
// mpi tag and no test exercises it. Local is the Communicator the tests
// use; stencilctl sets no Communicator.
package transport

/*
#cgo LDFLAGS: -lmpi
#include <mpi.h>
*/
import "C"

import (
	"unsafe"

	"github.com/notargets/stencilcore/stencil"
)

// CGOMPI binds stencil.Communicator to a real MPI_Comm. Every method
// below is a direct, unpooled call into the MPI C API; request objects
// keep the underlying MPI_Request alive until Wait is called.
type CGOMPI struct {
	comm C.MPI_Comm
}

// NewCGOMPI wraps MPI_COMM_WORLD. The caller must have already called
// MPI_Init (or MPI_Init_thread) before constructing a CGOMPI.
func NewCGOMPI() *CGOMPI {
	return &CGOMPI{comm: C.MPI_COMM_WORLD}
}

func (m *CGOMPI) Rank() int {
	var r C.int
	C.MPI_Comm_rank(m.comm, &r)
	return int(r)
}

func (m *CGOMPI) Size() int {
	var s C.int
	C.MPI_Comm_size(m.comm, &s)
	return int(s)
}

func (m *CGOMPI) Isend(buf []byte, dest int, tag int) stencil.Request {
	var req C.MPI_Request
	C.MPI_Isend(unsafe.Pointer(&buf[0]), C.int(len(buf)), C.MPI_BYTE,
		C.int(dest), C.int(tag), m.comm, &req)
	return &cgoRequest{req: req}
}

func (m *CGOMPI) Irecv(buf []byte, source int, tag int) stencil.Request {
	var req C.MPI_Request
	C.MPI_Irecv(unsafe.Pointer(&buf[0]), C.int(len(buf)), C.MPI_BYTE,
		C.int(source), C.int(tag), m.comm, &req)
	return &cgoRequest{req: req}
}

func (m *CGOMPI) Waitall(reqs []stencil.Request) {
	for _, r := range reqs {
		r.Wait()
	}
}

func (m *CGOMPI) Bcast(buf []byte, root int) {
	C.MPI_Bcast(unsafe.Pointer(&buf[0]), C.int(len(buf)), C.MPI_BYTE, C.int(root), m.comm)
}

type cgoRequest struct {
	req C.MPI_Request
}

func (r *cgoRequest) Wait() {
	var status C.MPI_Status
	C.MPI_Wait(&r.req, &status)
}
