package service

import (
	"strconv"
	"time"

	"github.com/nsvirk/autotraderapi/internal/config"
	"github.com/nsvirk/autotraderapi/internal/kiteapi"
	"github.com/nsvirk/autotraderapi/pkg/utils/zaplogger"
	"github.com/robfig/cron/v3"
)

// CronService schedules the trading-day jobs: instrument directory
// refresh before open, ticker start before open, ticker stop at the
// end of day
type CronService struct {
	cfg               *config.Config
	c                 *cron.Cron
	sessionService    *SessionService
	instrumentService *InstrumentService
	tickerService     *TickerService
	kiteClient        *kiteapi.Client
}

// NewCronService creates a new CronService
func NewCronService(cfg *config.Config, sessionService *SessionService, instrumentService *InstrumentService, tickerService *TickerService, kiteClient *kiteapi.Client) *CronService {
	return &CronService{
		cfg:               cfg,
		c:                 cron.New(),
		sessionService:    sessionService,
		instrumentService: instrumentService,
		tickerService:     tickerService,
		kiteClient:        kiteClient,
	}
}

// Start starts the cron service
func (cs *CronService) Start() {
	zaplogger.Info("Initializing CronService")

	// ------------------------------------------------------------
	// Add your SCHEDULED jobs here
	// ------------------------------------------------------------
	cs.addScheduledJob("API Instruments UPDATE Job", cs.apiInstrumentsUpdateJob, "0 8 * * 1-5") // Once at 08:00am, Mon-Fri
	cs.addScheduledJob("Ticker START Job", cs.tickerStartJob, "55 8 * * 1-5")                   // Once at 08:55am, Mon-Fri
	cs.addScheduledJob("Ticker STOP Job", cs.tickerStopJob, "59 23 * * 1-5")                    // Once at 11:59pm, Mon-Fri

	// ------------------------------------------------------------
	// Add your STARTUP jobs here
	// ------------------------------------------------------------
	cs.addStartupJob("API Instruments UPDATE Job", cs.apiInstrumentsUpdateJob, 1*time.Second)
	cs.addStartupJob("Ticker START Job", cs.tickerStartJob, 5*time.Second)
	// ------------------------------------------------------------

	cs.c.Start()
}

// addStartupJob adds a startup job to the cron service
func (cs *CronService) addStartupJob(name string, job func(), delay time.Duration) {
	go func() {
		time.Sleep(delay)
		zaplogger.Info("STARTED STARTUP job", zaplogger.Fields{
			"job": name,
		})
		job()
		zaplogger.Info("COMPLETED STARTUP job", zaplogger.Fields{
			"job": name,
		})
	}()
	zaplogger.Info("QUEUED STARTUP job", zaplogger.Fields{
		"job": name,
	})
}

func (cs *CronService) addScheduledJob(name string, job func(), schedule string) {
	_, err := cs.c.AddFunc(schedule, func() {
		zaplogger.Info("STARTED SCHEDULED JOB", zaplogger.Fields{
			"job": name,
		})
		job()
		zaplogger.Info("COMPLETED SCHEDULED JOB", zaplogger.Fields{
			"job": name,
		})
	})
	if err != nil {
		zaplogger.Error("FAILED TO QUEUE SCHEDULED JOB", zaplogger.Fields{
			"job":   name,
			"error": err.Error(),
		})
		return
	}
	zaplogger.Info("QUEUED SCHEDULED job", zaplogger.Fields{
		"job": name,
	})
}

// apiInstrumentsUpdateJob updates the instrument directory
func (cs *CronService) apiInstrumentsUpdateJob() {
	jobName := "API Instruments UPDATE Job "

	rowsInserted, err := cs.instrumentService.UpdateInstruments()
	if err != nil {
		zaplogger.Error(jobName, zaplogger.Fields{
			"error": err.Error(),
		})
		return
	}
	zaplogger.Info(jobName, zaplogger.Fields{
		"rows_inserted": strconv.FormatInt(rowsInserted, 10),
	})
}

// tickerStartJob logs in with the configured credentials and starts
// the tick stream
func (cs *CronService) tickerStartJob() {
	jobName := "Ticker START Job "

	sessionData, err := cs.sessionService.LoginFromConfig(false)
	if err != nil {
		zaplogger.Error(jobName, zaplogger.Fields{
			"step":    "LoginFromConfig",
			"user_id": cs.cfg.KiteUserID,
			"error":   err.Error(),
		})
		return
	}
	zaplogger.Info(jobName, zaplogger.Fields{
		"step":       "LoginFromConfig",
		"user_id":    sessionData.UserId,
		"enctoken":   sessionData.Enctoken[:4] + "..." + sessionData.Enctoken[len(sessionData.Enctoken)-4:],
		"login_time": sessionData.LoginTime,
	})

	// historical candles and order calls share the session
	cs.kiteClient.SetSession(sessionData.UserId, sessionData.Enctoken)

	if err := cs.tickerService.Start(sessionData.UserId, sessionData.Enctoken); err != nil {
		zaplogger.Error(jobName, zaplogger.Fields{
			"step":  "TickerStart",
			"error": err.Error(),
		})
		return
	}
	zaplogger.Info(jobName, zaplogger.Fields{
		"step": "TickerStart",
	})
}

// tickerStopJob stops the tick stream
func (cs *CronService) tickerStopJob() {
	jobName := "Ticker STOP Job "

	if err := cs.tickerService.Stop(); err != nil {
		zaplogger.Error(jobName, zaplogger.Fields{
			"step":  "TickerStop",
			"error": err.Error(),
		})
		return
	}
	zaplogger.Info(jobName, zaplogger.Fields{
		"step": "TickerStop",
	})
}
