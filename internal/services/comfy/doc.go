// Package comfy is the job client for a ComfyUI backend.
//
// Client.UploadImage, Client.QueuePrompt, and Client.Subscribe wrap the three
// backend operations; Await turns the subscription's event stream into a
// single terminal result (images, execution error, or timeout). Every failure
// carries one of the services error markers so the worker can classify it.
package comfy
