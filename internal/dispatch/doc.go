// Package dispatch turns command text into calls on the acquisition pipeline,
// the metadata lookup and the favorites store.
//
// A Dispatcher owns one loop goroutine that receives submitted commands,
// parses them and starts one worker goroutine per command. Replies travel on
// a channel with a buffer of one so a worker never blocks when the submitter
// has already gone away; such replies are dropped. Acquisitions started by an
// abandoned request still run to completion inside the pipeline.
//
// The grammar is documented by Usage. Verbs are case-insensitive and an
// optional leading "/" is ignored, so chat-style input such as "/JMD 123456"
// works unchanged.
package dispatch
