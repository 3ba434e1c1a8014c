//go:build rp2040

package main

import (
	"context"
	"machine"
	"time"

	"spieeprom/core"
	"spieeprom/demo"
	"spieeprom/eeprom"
)

// Board wiring: EEPROM on SPI0 (spi0c pin group), chip select on GPIO17,
// HOLD on GPIO20.
const (
	csPin   = core.GPIOPin(17)
	holdPin = core.GPIOPin(20)

	// Bit-bang the bus on the same pins instead of using the controller
	useSoftwareSPI = false

	loopWait = 5000 * time.Millisecond
)

var spi0c = spiPins{spi: machine.SPI0, sck: machine.GPIO18, sdo: machine.GPIO19, sdi: machine.GPIO16, name: "spi0c"}

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	// machine.Serial is USB CDC on RP2040
	_ = machine.Serial.Configure(machine.UARTConfig{})
	console := core.NewConsole(machine.Serial)

	// Give the host time to open the port before the banner
	time.Sleep(2 * time.Second)
	console.WriteLine("")

	var spi core.SPIDriver
	if useSoftwareSPI {
		spi = NewSoftwareSPIDriver(spi0c.sck, spi0c.sdo, spi0c.sdi)
	} else {
		spi = NewRP2040SPIDriver(spi0c)
	}

	console.WriteLine("EEPROM on " + spi0c.name + ", CS gpio" + core.Itoa(int(csPin)) + ", HOLD gpio" + core.Itoa(int(holdPin)))

	cfg := eeprom.DefaultConfig(csPin, holdPin)
	cfg.Debug = console.DebugWriter()

	sess, err := eeprom.NewSession(spi, NewRPGPIODriver(), cfg)
	if err != nil {
		console.WriteLine("EEPROM init failed: " + err.Error())
		idle(console)
	}

	report, err := demo.Run(context.Background(), sess, console, demo.DefaultOptions())
	if err != nil {
		console.WriteLine("Demo finished with errors")
	}
	if report != nil && !report.Match {
		ledBlink(3)
	}

	idle(console)
}

// idle is the program loop after the demo; nothing else runs on the board
func idle(console *core.Console) {
	console.WriteLine("Starting program loop.")
	for {
		time.Sleep(loopWait)
	}
}

// ledBlink blinks the LED a specific number of times for diagnostics
func ledBlink(count int) {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for i := 0; i < count; i++ {
		led.High()
		time.Sleep(150 * time.Millisecond)
		led.Low()
		time.Sleep(150 * time.Millisecond)
	}
}
