package dlog

import (
	"log"
	"time"
)

var DLOG = false

func Printf(format string, v ...interface{}) {
	if !DLOG {
		return
	}
	log.Printf(format, v...)
}

func Println(v ...interface{}) {
	if !DLOG {
		return
	}
	log.Println(v...)
}

func AgentPrintfN(aid int32, format string, v ...interface{}) {
	if !DLOG {
		return
	}
	args := make([]interface{}, 0, len(v)+3)
	args = append(args, time.Now().Format("2006/01/02, 15:04:05 .000"), time.Now().UnixNano(), aid)
	args = append(args, v...)
	log.Printf("%s, %d, Replica %d, "+format+"\n", args...)
}
