package icm20948

import (
	"fmt"
	"time"

	"tiltmatrix/internal/i2c"
)

var sleep = time.Sleep

// Accelerometer-only ICM-20948 driver.
//
// The gyro is powered down; only the accel block is configured and read.
// WHO_AM_I at 0x00 must return 0xEA.

const (
	addrDefault = 0x68

	regWhoAmI  = 0x00
	whoAmIVal  = 0xEA
	regBankSel = 0x7F

	// Bank 0.
	regPwrMgmt1   = 0x06
	regPwrMgmt2   = 0x07
	regIntPinCfg  = 0x0F
	regIntEnable1 = 0x11
	regIntStatus1 = 0x1A
	regAccelXoutH = 0x2D

	bitReset      = 0x80
	clkAuto       = 0x01
	gyroOff       = 0x07 // DISABLE_GYRO x/y/z
	intLatchAnyRd = 0x30 // INT1_LATCH_EN | INT_ANYRD_2CLEAR, active high push-pull
	rawDataRdy    = 0x01

	// Bank 2.
	bank2            = 2
	regAccelSmplrt1  = 0x10
	regAccelSmplrt2  = 0x11
	regAccelConfig   = 0x14
	accelDLPFEnabled = 0x01

	baseRateHz = 1125
)

// Config selects the accel range, output rate and interrupt use.
type Config struct {
	// FullScaleG is 2, 4, 8 or 16. Zero means 4.
	FullScaleG int
	// RateHz is the requested output data rate. Zero means 50.
	RateHz int
	// DataReadyInterrupt drives INT1 high when a new sample is available.
	DataReadyInterrupt bool
}

// Accel is one reading in g.
type Accel struct {
	Time    time.Time
	X, Y, Z float64
}

type Device struct {
	dev regIO
	cfg Config

	curBank  byte
	countsPG float64
}

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

func DefaultAddress() uint16 { return addrDefault }

func New(dev *i2c.Dev, cfg Config) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("icm20948: dev is nil")
	}
	return newWithIO(dev, cfg)
}

func newWithIO(dev regIO, cfg Config) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("icm20948: dev is nil")
	}
	fsSel, err := fullScaleSelect(cfg.FullScaleG)
	if err != nil {
		return nil, err
	}
	if cfg.FullScaleG == 0 {
		cfg.FullScaleG = 4
	}
	if cfg.RateHz <= 0 {
		cfg.RateHz = 50
	}
	d := &Device{dev: dev, cfg: cfg, curBank: 0xFF}

	who, err := d.dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("icm20948: whoami read failed: %w", err)
	}
	if who != whoAmIVal {
		return nil, fmt.Errorf("icm20948: whoami=0x%02X want 0x%02X", who, whoAmIVal)
	}

	if err := d.init(fsSel); err != nil {
		return nil, err
	}
	return d, nil
}

func fullScaleSelect(g int) (byte, error) {
	switch g {
	case 2:
		return 0, nil
	case 0, 4:
		return 1, nil
	case 8:
		return 2, nil
	case 16:
		return 3, nil
	}
	return 0, fmt.Errorf("icm20948: unsupported full scale %dg (want 2, 4, 8 or 16)", g)
}

// RateDivider returns the ACCEL_SMPLRT_DIV value for a requested rate.
// The device divides its 1125 Hz base rate by (div+1); div is 12 bits.
func RateDivider(rateHz int) uint16 {
	if rateHz <= 0 || rateHz >= baseRateHz {
		return 0
	}
	div := baseRateHz/rateHz - 1
	if div > 0x0FFF {
		div = 0x0FFF
	}
	return uint16(div)
}

func (d *Device) init(fsSel byte) error {
	if err := d.setBank(0); err != nil {
		return err
	}
	_ = d.dev.WriteReg(regIntEnable1, 0x00)

	if err := d.dev.WriteReg(regPwrMgmt1, bitReset); err != nil {
		return fmt.Errorf("icm20948: reset failed: %w", err)
	}
	sleep(100 * time.Millisecond)
	// Reset puts every register back to bank 0.
	d.curBank = 0

	if err := d.dev.WriteReg(regPwrMgmt1, clkAuto); err != nil {
		return fmt.Errorf("icm20948: wake failed: %w", err)
	}
	sleep(10 * time.Millisecond)
	if err := d.dev.WriteReg(regPwrMgmt2, gyroOff); err != nil {
		return fmt.Errorf("icm20948: power config failed: %w", err)
	}

	if err := d.setBank(bank2); err != nil {
		return err
	}
	div := RateDivider(d.cfg.RateHz)
	if err := d.dev.WriteReg(regAccelSmplrt1, byte(div>>8)); err != nil {
		return fmt.Errorf("icm20948: rate config failed: %w", err)
	}
	if err := d.dev.WriteReg(regAccelSmplrt2, byte(div)); err != nil {
		return fmt.Errorf("icm20948: rate config failed: %w", err)
	}
	if err := d.dev.WriteReg(regAccelConfig, fsSel<<1|accelDLPFEnabled); err != nil {
		return fmt.Errorf("icm20948: accel config failed: %w", err)
	}

	if err := d.setBank(0); err != nil {
		return err
	}
	if d.cfg.DataReadyInterrupt {
		if err := d.dev.WriteReg(regIntPinCfg, intLatchAnyRd); err != nil {
			return fmt.Errorf("icm20948: int pin config failed: %w", err)
		}
		if err := d.dev.WriteReg(regIntEnable1, rawDataRdy); err != nil {
			return fmt.Errorf("icm20948: int enable failed: %w", err)
		}
	}

	d.countsPG = 32768.0 / float64(d.cfg.FullScaleG)
	return nil
}

func (d *Device) setBank(bank byte) error {
	if d.curBank == bank {
		return nil
	}
	if err := d.dev.WriteReg(regBankSel, bank<<4); err != nil {
		return fmt.Errorf("icm20948: set bank %d failed: %w", bank, err)
	}
	d.curBank = bank
	return nil
}

// Config returns the effective configuration after defaults.
func (d *Device) Config() Config { return d.cfg }

// DataReady reports whether a fresh sample is waiting.
func (d *Device) DataReady() (bool, error) {
	if err := d.setBank(0); err != nil {
		return false, err
	}
	st, err := d.dev.ReadRegU8(regIntStatus1)
	if err != nil {
		return false, fmt.Errorf("icm20948: int status read failed: %w", err)
	}
	return st&rawDataRdy != 0, nil
}

func (d *Device) ReadAccel() (Accel, error) {
	if d == nil {
		return Accel{}, fmt.Errorf("icm20948: device is nil")
	}
	if err := d.setBank(0); err != nil {
		return Accel{}, err
	}

	var buf [6]byte
	if err := d.dev.ReadReg(regAccelXoutH, buf[:]); err != nil {
		return Accel{}, fmt.Errorf("icm20948: read accel failed: %w", err)
	}

	ax := int16(buf[0])<<8 | int16(buf[1])
	ay := int16(buf[2])<<8 | int16(buf[3])
	az := int16(buf[4])<<8 | int16(buf[5])

	return Accel{
		Time: time.Now(),
		X:    float64(ax) / d.countsPG,
		Y:    float64(ay) / d.countsPG,
		Z:    float64(az) / d.countsPG,
	}, nil
}
