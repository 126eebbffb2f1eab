//go:build windows

package cookiebroom

import (
	"context"
	"unsafe"

	"golang.org/x/sys/windows"
)

func listSystemProcesses(_ context.Context) ([]processInfo, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, err
	}
	defer func() { _ = windows.CloseHandle(snap) }()

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Process32First(snap, &entry); err != nil {
		return nil, err
	}
	var procs []processInfo
	for {
		procs = append(procs, processInfo{
			pid:  int(entry.ProcessID),
			name: windows.UTF16ToString(entry.ExeFile[:]),
		})
		if err := windows.Process32Next(snap, &entry); err != nil {
			break
		}
	}
	return procs, nil
}
