// c-shared 入口：把 boundary 的句柄 API 以 C ABI 导出给非 Go 宿主。
//
// 构建方式：
//
//	go build -buildmode=c-shared -o libopenfiresession.so ./bridge
//
// 所有返回的字符串都由本库用 malloc 分配，宿主用完后必须调用
// openfire_free_string 释放。
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/lk2023060901/openfire-session-go/boundary"
)

func cBool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

//export openfire_initialize
func openfire_initialize() C.int {
	return cBool(boundary.Initialize())
}

//export openfire_create_client
func openfire_create_client(configJSON *C.char) C.longlong {
	return C.longlong(boundary.CreateClient(C.GoString(configJSON)))
}

//export openfire_destroy_client
func openfire_destroy_client(handle C.longlong) C.int {
	return cBool(boundary.DestroyClient(int64(handle)))
}

//export openfire_connect
func openfire_connect(handle C.longlong, username, password, domain *C.char) *C.char {
	res := boundary.Connect(int64(handle), C.GoString(username), C.GoString(password), C.GoString(domain))
	return C.CString(res)
}

//export openfire_disconnect
func openfire_disconnect(handle C.longlong) C.int {
	return cBool(boundary.Disconnect(int64(handle)))
}

//export openfire_is_connected
func openfire_is_connected(handle C.longlong) C.int {
	return cBool(boundary.IsConnected(int64(handle)))
}

//export openfire_send_message
func openfire_send_message(handle C.longlong, to, body *C.char) *C.char {
	return C.CString(boundary.SendMessage(int64(handle), C.GoString(to), C.GoString(body)))
}

//export openfire_send_group_message
func openfire_send_group_message(handle C.longlong, room, body *C.char) *C.char {
	return C.CString(boundary.SendGroupMessage(int64(handle), C.GoString(room), C.GoString(body)))
}

//export openfire_set_presence
func openfire_set_presence(handle C.longlong, status C.int, text *C.char) C.int {
	return cBool(boundary.SetPresence(int64(handle), int(status), C.GoString(text)))
}

//export openfire_get_presence
func openfire_get_presence(handle C.longlong) *C.char {
	return C.CString(boundary.GetPresence(int64(handle)))
}

//export openfire_join_room
func openfire_join_room(handle C.longlong, room, nickname *C.char) C.int {
	return cBool(boundary.JoinRoom(int64(handle), C.GoString(room), C.GoString(nickname)))
}

//export openfire_leave_room
func openfire_leave_room(handle C.longlong, room *C.char) C.int {
	return cBool(boundary.LeaveRoom(int64(handle), C.GoString(room)))
}

//export openfire_poll_event
func openfire_poll_event(handle C.longlong) *C.char {
	return C.CString(boundary.PollEvent(int64(handle)))
}

//export openfire_get_version
func openfire_get_version() *C.char {
	return C.CString(boundary.GetVersion())
}

//export openfire_free_string
func openfire_free_string(s *C.char) {
	C.free(unsafe.Pointer(s))
}

func main() {}
