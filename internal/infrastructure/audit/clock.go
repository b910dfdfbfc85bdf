package audit

import "time"

func nowMs() int64 { return time.Now().UTC().UnixMilli() }
