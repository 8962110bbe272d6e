//Package mock holds gomock mocks of the interfaces raw devices are accessed
// through, used for fault injection and to assert no I/O took place
package mock

//go:generate mockgen -destination sectorio.go -package mock github.com/tarndt/rawblk/pkg/sectorio Device
