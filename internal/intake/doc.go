// Package intake is the command surface: it picks the workflow profile named
// by a command, checks the requester's authority, decides the prompt mode, and
// routes the request through the assembler into the queue, replying to the
// requester at each step.
package intake
