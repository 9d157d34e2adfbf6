// Package serial owns the physical serial link to the device network.
//
// A Link opens the port with go.bug.st/serial at a standard baudrate (8N1),
// reads with a bounded timeout in a background goroutine and hands raw byte
// chunks to a single consumer. Line framing belongs to the consumer.
//
//	link, err := serial.Open(serial.Config{
//	    Port:        "/dev/ttyUSB0",
//	    Baudrate:    9600,
//	    ReadTimeout: 100 * time.Millisecond,
//	})
//	if err != nil {
//	    return err
//	}
//	defer link.Close()
//
//	for chunk := range link.Chunks() {
//	    assembler.Feed(chunk)
//	}
package serial
