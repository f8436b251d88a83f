// Command retro records a short retrospective video from the local camera
// and microphone, lets the user review or retake it, and uploads the final
// take to the dashboard.
//
// The record command is interactive: it reads one action per line (start,
// stop, retake, submit) and only offers the actions legal in the current
// step. Supporting commands check readiness (doctor), list or watch capture
// devices, and manage the configuration file.
package main
