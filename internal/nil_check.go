package internal

import "reflect"

// IsNil 判斷介面值是否為 nil，包含包著 nil 指標的介面（typed nil）。
// 服務的選用協作者（通知、快取、觀察者）以此判斷是否略過呼叫。
func IsNil(i interface{}) bool {
	if i == nil {
		return true
	}
	switch v := reflect.ValueOf(i); v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}
